package main

import "testing"

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, buildDate
	defer func() {
		version, commit, buildDate = origVersion, origCommit, origDate
	}()

	version, commit, buildDate = "dev", "unknown", "unknown"
	if got := getVersionString(); got != "dev" {
		t.Errorf("expected bare version for dev builds, got %q", got)
	}

	version, commit, buildDate = "1.2.0", "abc1234", "2026-08-24"
	want := "1.2.0 (commit: abc1234, built: 2026-08-24)"
	if got := getVersionString(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
