package rpmwriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
)

func TestWriteFailsOnMissingStagedFile(t *testing.T) {
	d := &descriptor.Descriptor{Name: "demo", Version: "1.0", Release: "1"}

	_, err := Write(d, t.TempDir(), []string{"usr/lib/demo/ghost.py"}, t.TempDir())
	if err == nil {
		t.Fatal("expected error for staged file missing from disk")
	}
}

func TestWriteArtifactNaming(t *testing.T) {
	stagingRoot := t.TempDir()
	rel := filepath.Join("usr", "share", "demo", "notes.txt")
	full := filepath.Join(stagingRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte("notes"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d := &descriptor.Descriptor{Name: "demo", Version: "2.1.7", Release: "3", License: "MIT"}
	path, err := Write(d, stagingRoot, []string{rel}, t.TempDir())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "demo-2.1.7-3.noarch.rpm" {
		t.Errorf("artifact = %q", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if info.Size() == 0 {
		t.Error("artifact is empty")
	}
}
