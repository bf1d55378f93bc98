package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSettings(t *testing.T) {
	s, err := new(Config).Settings()
	if err != nil {
		t.Fatalf("default settings are invalid: %v", err)
	}
	want := Settings{
		MerlinPath:        "ocamlmerlin",
		MerlinFlags:       []string{},
		MerlinLog:         filepath.Join(os.TempDir(), "merlin.ocamlcreator.log"),
		RequestTimeout:    10 * time.Second,
		RetireTimeout:     3 * time.Second,
		StartAttempts:     3,
		BreakerCooldown:   30 * time.Second,
		WatchProjectFiles: true,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	files := map[string]string{
		"c.yaml": "merlin_path: /opt/ocamlmerlin\nrequest_timeout: 2s\nmerlin_flags: [-I, lib]\nwatch_project_files: false\n",
		"c.toml": "merlin_path = \"/opt/ocamlmerlin\"\nrequest_timeout = \"2s\"\nmerlin_flags = [\"-I\", \"lib\"]\nwatch_project_files = false\n",
		"c.json": `{"MerlinPath": "/opt/ocamlmerlin", "RequestTimeout": "2s", "MerlinFlags": ["-I", "lib"], "WatchProjectFiles": false}`,
	}
	want := &Config{
		MerlinPath:        String("/opt/ocamlmerlin"),
		RequestTimeout:    String("2s"),
		MerlinFlags:       []string{"-I", "lib"},
		WatchProjectFiles: Bool(false),
	}
	dir := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0666); err != nil {
			t.Fatal(err)
		}
		got, err := Load(path)
		if err != nil {
			t.Errorf("Load(%v) failed: %v", name, err)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load(%v) mismatch (-want +got):\n%s", name, diff)
		}
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("no_such_field: 1\n"), 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Errorf("Load of an unknown field succeeded")
	}
	if _, err := Load(filepath.Join(dir, "c.ini")); err == nil {
		t.Errorf("Load of a missing file succeeded")
	}
}

func TestApplyAndEnv(t *testing.T) {
	c := Default()
	c.Apply(&Config{RequestTimeout: String("1s"), BreakerThreshold: Int(2)})
	env := map[string]string{
		"OCAMLCREATOR_MERLIN_PATH":     "/bin/merlin",
		"OCAMLCREATOR_MERLIN_FLAGS":    `-I "my lib" -open Core`,
		"OCAMLCREATOR_REQUEST_TIMEOUT": "500ms",
	}
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	s, err := c.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if s.MerlinPath != "/bin/merlin" || s.RequestTimeout != 500*time.Millisecond || s.BreakerThreshold != 2 {
		t.Errorf("unexpected settings %+v", s)
	}
	if diff := cmp.Diff([]string{"-I", "my lib", "-open", "Core"}, s.MerlinFlags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}

	env["OCAMLCREATOR_REQUEST_TIMEOUT"] = "soon"
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Errorf("invalid timeout accepted")
	}
}

func TestValidate(t *testing.T) {
	bad := []*Config{
		{RequestTimeout: String("forever")},
		{RetireTimeout: String("-1s")},
		{StartAttempts: Int(0)},
		{BreakerThreshold: Int(-1)},
		{MerlinPath: String("")},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) succeeded; want error", c)
		}
	}
}
