package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "halopress" {
		t.Errorf("expected Use to be 'halopress', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected descriptions to be set")
	}

	expectedCommands := []string{
		"version",
		"db",
		"schema",
		"content",
		"migrate",
		"resync",
		"summaries",
		"worker",
	}

	for _, expected := range expectedCommands {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"config", "no-color", "json"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() {
		Version = "dev"
		GitCommit = "unknown"
	}()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--no-color"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	got := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		key, value, _ := strings.Cut(line, ":")
		got[key] = strings.TrimSpace(value)
	}
	if got["halopress version"] != "1.0.0-test" {
		t.Errorf("expected version 1.0.0-test, got %q", got["halopress version"])
	}
	if got["Git commit"] != "abc123" {
		t.Errorf("expected commit abc123, got %q", got["Git commit"])
	}
	if !strings.HasPrefix(got["Go version"], "go") {
		t.Errorf("expected a go version, got %q", got["Go version"])
	}
}

func TestNewVersionCommand_JSON(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	var info versionInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out.String())
	}
	if info.Version != "dev" {
		t.Errorf("expected version dev, got %q", info.Version)
	}
}
