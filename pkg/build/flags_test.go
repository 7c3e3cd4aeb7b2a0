// SPDX-License-Identifier: MIT
package build

import (
	"strings"
	"testing"
)

func TestInitializeRequiresAllFlags(t *testing.T) {
	// Development builds leave the ldflags variables empty.
	if err := Initialize(); err == nil {
		t.Error("Initialize with empty flags should error")
	}

	buildName = "beatclock"
	buildTime = "2026-08-28T12:00:00Z"
	buildCommit = "abc1234"
	defer func() {
		buildName, buildTime, buildCommit, buildVersion = "", "", "", ""
	}()

	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "BuildVersion") {
		t.Errorf("expected BuildVersion error, got %v", err)
	}

	buildVersion = "0.1.0"
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	flags := GetBuildFlags()
	if flags.Name != "beatclock" || flags.Version != "0.1.0" {
		t.Errorf("flags not copied: %+v", flags)
	}
}

func TestDefaultsBeforeInitialize(t *testing.T) {
	flags := GetBuildFlags()
	if flags == nil {
		t.Fatal("GetBuildFlags returned nil")
	}
	if flags.Name == "" {
		t.Error("Name should default to a non-empty placeholder")
	}
}

func TestStringIncludesVersion(t *testing.T) {
	f := &ldFlags{Name: "beatclock", Version: "1.2.3", Commit: "abc", Time: "now"}
	s := f.String()
	for _, want := range []string{"beatclock", "1.2.3", "abc"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q missing %q", s, want)
		}
	}
}
