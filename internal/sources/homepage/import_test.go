package homepage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const sample = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - React Docs:
        - abbr: RE
          href: https://react.dev/
- Social:
    - Reddit:
        - icon: reddit.png
          href: https://reddit.com/
          description: The front page of the internet
    - Mirror:
        - href: https://github.com/
    - NoLink:
        - abbr: NL
`

func TestInputs(t *testing.T) {
	config, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got, err := Inputs(config)
	if err != nil {
		t.Fatalf("Inputs() error = %v", err)
	}

	want := []domain.Input{
		{Title: "Github", URL: "https://github.com/"},
		{Title: "React Docs", URL: "https://react.dev/"},
		{Title: "Reddit", URL: "https://reddit.com/"},
	}
	if len(got) != len(want) {
		t.Fatalf("Inputs() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Inputs()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseWithTemplateVariables(t *testing.T) {
	yamlContent := `---
- Infra:
    - AdGuard:
        - href: {{HOMEPAGE_VAR_ADGUARD_URL}}
    - Grafana:
        - href: https://grafana.example
`
	config, err := Parse([]byte(yamlContent))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, err := Inputs(config)
	if err != nil {
		t.Fatalf("Inputs() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Grafana" {
		t.Errorf("Inputs() = %+v, want only Grafana", got)
	}
}

func TestInputsErrors(t *testing.T) {
	var big strings.Builder
	big.WriteString("- Many:\n")
	for i := 0; i <= MaxImport; i++ {
		fmt.Fprintf(&big, "    - B%d:\n        - href: https://example.com/%d\n", i, i)
	}

	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty document", "", ErrEmpty},
		{"no hrefs", "- Cat:\n    - A:\n        - abbr: A\n", ErrEmpty},
		{"too many", big.String(), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if _, err := Inputs(config); !errors.Is(err, tt.want) {
				t.Errorf("Inputs() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse([]byte("- Cat: [unclosed")); err == nil {
		t.Error("Parse() should fail on malformed yaml")
	}
}
