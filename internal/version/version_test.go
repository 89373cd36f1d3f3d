package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildSettings(t *testing.T) {
	vcs := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			name: "defaults filled from vcs",
			in:   Info{Version: "dev", Commit: "none", BuildDate: "unknown"},
			want: Info{Version: "dev", Commit: "0123456789ab", BuildDate: "2026-01-02T03:04:05Z", Modified: true},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "v1.0.0", Commit: "abc1234", BuildDate: "2025-08-11T18:42:00Z"},
			want: Info{Version: "v1.0.0", Commit: "abc1234", BuildDate: "2025-08-11T18:42:00Z", Modified: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromBuildSettings(tt.in, vcs); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	s := Info{Version: "v1", Commit: "abc", BuildDate: "today", GoVersion: "go1.25", Modified: true}.String()
	if !strings.Contains(s, "commit=abc+dirty") || !strings.HasPrefix(s, "marks v1") {
		t.Errorf("String() = %q", s)
	}
	if Get().GoVersion == "" {
		t.Error("Get() without go version")
	}
}
