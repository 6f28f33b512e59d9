package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("match.not_your_turn", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "It's not your turn." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("chat.too_long", map[string]any{"Limit": 500})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "500") {
		t.Fatalf("limit not interpolated: %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatal("expected error for missing key")
	}
	if got := c.MustRender("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("MustRender fallback wrong: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "match:\n  not_your_turn: \"Wait for your opponent.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, _ := c.Render("match.not_your_turn", nil)
	if got != "Wait for your opponent." {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their defaults
	got, _ = c.Render("match.full", nil)
	if got != "This game already has two players." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("match:\n  full: \"one\"\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("match:\n  full: \"two\"\n"), 0o644)

	if _, err := New(dir); err == nil {
		t.Fatal("expected duplicate key error")
	}
}
