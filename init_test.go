package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/rustnav/internal/config"
)

// TestApplySectionCreate verifies that applySection on empty content wraps the
// section in sentinels with a trailing newline.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody\n" + sentinelEnd
	got := applySection("", section)
	if !strings.Contains(got, sentinelStart) {
		t.Error("missing sentinel start")
	}
	if !strings.Contains(got, sentinelEnd) {
		t.Error("missing sentinel end")
	}
	if !strings.HasSuffix(got, sentinelEnd+"\n") {
		t.Errorf("missing trailing newline: %q", got)
	}
}

// TestApplySectionAppend verifies that existing content without a sentinel block
// is preserved and the section is appended.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "# My Crate\n\nSome existing content."
	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(existing, section)

	if !strings.HasPrefix(got, existing+"\n\n") {
		t.Errorf("existing content should be preserved at start:\n%s", got)
	}
	if !strings.Contains(got, "new content") {
		t.Error("new content missing")
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "# Crate\n\n"
	after := "\n\n## Other Section\n"
	old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("unexpected update:\n%s", got)
	}
}

func TestInitWritesDefaultConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "conf", config.FileName)

	_, stderr, err := runCLI(t, "init", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stderr, "wrote "+path) {
		t.Errorf("stderr = %q", stderr)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.LogLevel != config.Default().LogLevel {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestInitDirectoryPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, _, err := runCLI(t, "init", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		t.Errorf("expected config inside directory: %v", err)
	}
}

func TestInitRefusesExisting(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.FileName)
	writeTestFile(t, filepath.Dir(path), config.FileName, "log_level: debug\n")

	_, _, err := runCLI(t, "init", path)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "log_level: debug\n" {
		t.Errorf("existing config was modified: %q", data)
	}

	if _, _, err := runCLI(t, "init", "--force", path); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "log_level: info") {
		t.Errorf("--force should overwrite:\n%s", data)
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	notes := filepath.Join(dir, "CLAUDE.md")
	existing := "# My Crate\n"
	writeTestFile(t, dir, "CLAUDE.md", existing)

	stdout, _, err := runCLI(t, "init", "--dry-run", "--notes", notes, path)
	if err != nil {
		t.Fatalf("init --dry-run: %v", err)
	}

	for _, want := range []string{"# rustnav settings", "log_level: info", "# My Crate", sentinelStart} {
		if !strings.Contains(stdout, want) {
			t.Errorf("dry-run output missing %q:\n%s", want, stdout)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("--dry-run must not write the config")
	}
	data, _ := os.ReadFile(notes)
	if string(data) != existing {
		t.Error("--dry-run must not modify the notes file")
	}
}

// TestInitNotesIdempotent verifies that updating the notes file twice
// produces identical content.
func TestInitNotesIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	notes := filepath.Join(dir, "CLAUDE.md")

	if _, _, err := runCLI(t, "init", "--notes", notes, filepath.Join(dir, "a.yaml")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(notes)

	if _, _, err := runCLI(t, "init", "--notes", notes, filepath.Join(dir, "b.yaml")); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(notes)

	if string(first) != string(second) {
		t.Errorf("notes update is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if strings.Count(string(second), sentinelStart) != 1 {
		t.Error("notes file should hold exactly one section")
	}
}

func TestInitSectionContainsExamples(t *testing.T) {
	t.Parallel()
	section := generateSection()

	for _, ex := range []string{"rustnav map", "--version", "-n 20", "--symbol", "--file"} {
		if !strings.Contains(section, ex) {
			t.Errorf("generated section missing example %q", ex)
		}
	}
}

func TestInitDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, _, err := runCLI(t, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		t.Errorf("expected %s in working directory: %v", config.FileName, err)
	}
}
