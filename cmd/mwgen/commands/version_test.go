// ABOUTME: Tests for version command
// ABOUTME: Verifies version info display and SetVersion functionality

package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long description should not be empty")
	}
}

func restoreVersion(t *testing.T) {
	original := versionInfo
	t.Cleanup(func() { versionInfo = original })
}

func TestVersionCmd_Output(t *testing.T) {
	restoreVersion(t)
	SetVersion("1.2.3", "abc123", "2026-10-19")

	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	outputStr := output.String()
	for _, want := range []string{"mwgen 1.2.3", "abc123", "2026-10-19"} {
		if !strings.Contains(outputStr, want) {
			t.Errorf("Output should contain %q, got %q", want, outputStr)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	restoreVersion(t)
	SetVersion("1.2.3", "abc123", "2026-10-19")

	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--format", "json", "version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got VersionInfo
	if err := json.Unmarshal(output.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output.String())
	}
	if got.Version != "1.2.3" || got.Commit != "abc123" {
		t.Errorf("got %+v", got)
	}
}

func TestSetVersion(t *testing.T) {
	restoreVersion(t)

	SetVersion("v2.0.0", "def456", "2026-12-25")

	if versionInfo.Version != "v2.0.0" {
		t.Errorf("Version = %q, want %q", versionInfo.Version, "v2.0.0")
	}
	if versionInfo.Commit != "def456" {
		t.Errorf("Commit = %q, want %q", versionInfo.Commit, "def456")
	}
	if versionInfo.Date != "2026-12-25" {
		t.Errorf("Date = %q, want %q", versionInfo.Date, "2026-12-25")
	}
}
