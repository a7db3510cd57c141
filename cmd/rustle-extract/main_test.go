package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rustledotdev/rustle"
)

func TestRunVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), rustle.Name) {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunRejectsBadLocale(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--src", t.TempDir(), "--output", t.TempDir(), "--source-lang", "English"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("want validation error for malformed locale")
	}
}

func TestRunWithoutCredentialsFallsBack(t *testing.T) {
	t.Setenv("RUSTLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	src := t.TempDir()
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "index.html"), []byte("<h1>Welcome</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--src", src,
		"--output", out,
		"--target-langs", "es",
		"--quiet",
		"--config", filepath.Join(t.TempDir(), "rustle.yaml"),
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	raw, err := os.ReadFile(filepath.Join(out, "es.json"))
	if err != nil {
		t.Fatal(err)
	}
	var es map[string]string
	if err := json.Unmarshal(raw, &es); err != nil {
		t.Fatal(err)
	}
	if es[rustle.Fingerprint("Welcome")] != "Welcome" {
		t.Errorf("es.json = %v, want source-text fallback", es)
	}
}

func TestRunReadsConfigFile(t *testing.T) {
	t.Setenv("RUSTLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	src := t.TempDir()
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "page.html"), []byte("<p>Hello</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(t.TempDir(), "rustle.yaml")
	cfgBody := "src: " + src + "\noutput: " + out + "\ntargetLangs: [it]\n"
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--config", cfgPath, "--quiet"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	if _, err := os.Stat(filepath.Join(out, "it.json")); err != nil {
		t.Errorf("config-driven target locale not written: %v", err)
	}
}

func TestSplitLangs(t *testing.T) {
	got := splitLangs(" es, fr ,,de ")
	want := []string{"es", "fr", "de"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
