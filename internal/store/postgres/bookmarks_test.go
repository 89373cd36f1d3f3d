package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Integration tests against a real PostgreSQL started with testcontainers-go.
// Run locally:
//   GO_TEST_INTEGRATION=1 go test ./internal/store/postgres -v -race -count=1

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	// the port may accept connections before the server is ready
	var st *Storage
	require.Eventually(t, func() bool {
		st, err = New(ctx, dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)

	require.NoError(t, st.Migrate(ctx))
	// a second run must be a no-op
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	})
	return st
}

func TestIntegration_InsertQueryCount(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		b, err := st.Insert(ctx, "u1", domain.Input{Title: fmt.Sprintf("bm %02d", i), URL: "https://example.com"})
		require.NoError(t, err)
		_, err = uuid.Parse(b.ID)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}
	_, err := st.Insert(ctx, "u2", domain.Input{Title: "other", URL: "https://example.com"})
	require.NoError(t, err)

	n, err := st.Count(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, 20, n)

	first, err := st.Query(ctx, "u1", "", 0, 9)
	require.NoError(t, err)
	require.Len(t, first, 9)
	require.Equal(t, ids[19], first[0].ID)

	last, err := st.Query(ctx, "u1", "", 18, 9)
	require.NoError(t, err)
	require.Len(t, last, 2)
	require.Equal(t, ids[0], last[1].ID)
}

func TestIntegration_SearchEscapesWildcards(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "u1", domain.Input{Title: "100% Go", URL: "https://go.dev"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "u1", domain.Input{Title: "React Docs", URL: "https://react.dev"})
	require.NoError(t, err)

	tests := []struct {
		search string
		want   int
	}{
		{"react", 1},
		{"REACT", 1},
		{"dev", 2},
		{"%", 1},
		{"_", 0},
		{"  ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			n, err := st.Count(ctx, "u1", tt.search)
			require.NoError(t, err)
			require.Equal(t, tt.want, n)
		})
	}
}

func TestIntegration_UpdateDeleteOwnership(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	b, err := st.Insert(ctx, "u1", domain.Input{Title: "mine", URL: "https://example.com"})
	require.NoError(t, err)

	n, err := st.Update(ctx, b.ID, "u2", domain.Input{Title: "x", URL: "https://x.example"})
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = st.Update(ctx, "not-a-uuid", "u1", domain.Input{Title: "x", URL: "https://x.example"})
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = st.Update(ctx, b.ID, "u1", domain.Input{Title: "renamed", URL: "https://example.com"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = st.Delete(ctx, b.ID, "u2")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = st.Delete(ctx, b.ID, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestIntegration_Subscribe(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []domain.ChangeEvent
	sub, err := st.Subscribe(ctx, "u1", func(ev domain.ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	b, err := st.Insert(ctx, "u1", domain.Input{Title: "a", URL: "https://a.example"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "u2", domain.Input{Title: "b", URL: "https://b.example"})
	require.NoError(t, err)
	_, err = st.Update(ctx, b.ID, "u1", domain.Input{Title: "a2", URL: "https://a.example"})
	require.NoError(t, err)
	_, err = st.Delete(ctx, b.ID, "u1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	require.Equal(t, domain.EventInsert, got[0].Type)
	require.Equal(t, domain.EventUpdate, got[1].Type)
	require.Equal(t, b.ID, got[1].Row.ID)
	require.Equal(t, domain.EventDelete, got[2].Type)
	require.Equal(t, b.ID, got[2].Row.ID)
	require.Equal(t, "u1", got[2].Row.OwnerID)
	mu.Unlock()

	require.NoError(t, sub.Unsubscribe())
	<-sub.Done()
}

func TestIntegration_LongURL(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	events := make(chan domain.ChangeEvent, 4)
	sub, err := st.Subscribe(ctx, "u1", func(ev domain.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	long := "https://long.example/" + strings.Repeat("a", 9000)
	in, err := domain.Input{Title: "long", URL: long}.Validate()
	require.NoError(t, err)

	b, err := st.Insert(ctx, "u1", in)
	require.NoError(t, err)

	rows, err := st.Query(ctx, "u1", "", 0, 9)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, long, rows[0].URL)

	n, err := st.Update(ctx, b.ID, "u1", domain.Input{Title: "longer", URL: long + "b"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	select {
	case ev := <-events:
		require.Equal(t, b.ID, ev.Row.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event for a long url")
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"   ":     "",
		"react":   "%react%",
		" go ":    "%go%",
		"100%":    `%100\%%`,
		"a_b":     `%a\_b%`,
		`back\sl`: `%back\\sl%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
