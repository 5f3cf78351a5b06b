package version

import "testing"

func TestString(t *testing.T) {
	orig := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = orig[0], orig[1], orig[2] })

	Version, Commit, Date = "v0.3.0", "abc1234", "2026-10-01T00:00:00Z"
	if got, want := String(), "v0.3.0 (commit abc1234, built 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if Short() != "v0.3.0" {
		t.Errorf("Short() = %q", Short())
	}
}
