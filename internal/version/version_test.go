package version

import (
	"strings"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	info := Get()
	if info.Version != "dev" {
		t.Fatalf("unexpected default version: %s", info.Version)
	}
	if info.Commit != "unknown" || info.Date != "unknown" {
		t.Fatalf("unexpected defaults: %+v", info)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Fatalf("expected %q in %q", part, s)
		}
	}
}
