package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndGet(t *testing.T) {
	s := NewService(t.TempDir())

	w := &Workspace{Name: "main", Projects: []Project{{Name: "api", Path: "/tmp/api"}}}
	if err := s.Create(w); err != nil {
		t.Fatal(err)
	}
	if w.ID == "" {
		t.Error("expected non-empty id")
	}
	if w.Projects[0].ID == "" {
		t.Error("expected project id assigned")
	}

	got, err := s.Get(w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "main" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestProjectDir(t *testing.T) {
	s := NewService(t.TempDir())
	w := &Workspace{Name: "main", Projects: []Project{{ID: "p1", Name: "api", Path: "/tmp/api"}}}
	s.Create(w)

	dir, err := s.ProjectDir(w.ID, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/api" {
		t.Errorf("dir = %q", dir)
	}
	if _, err := s.ProjectDir(w.ID, "missing"); err == nil {
		t.Error("expected error for unknown project")
	}
}

func TestCombinedDirSingleProject(t *testing.T) {
	s := NewService(t.TempDir())
	w := &Workspace{Name: "solo", Projects: []Project{{ID: "p1", Name: "api", Path: "/tmp/api"}}}
	s.Create(w)

	dir, err := s.CombinedDir(w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/api" {
		t.Errorf("single-project combined dir = %q, want project root", dir)
	}
}

func TestCombinedDirMultiProject(t *testing.T) {
	root := t.TempDir()
	s := NewService(root)

	pa := filepath.Join(root, "proj-a")
	pb := filepath.Join(root, "proj-b")
	os.MkdirAll(pa, 0755)
	os.MkdirAll(pb, 0755)

	w := &Workspace{Name: "multi", Projects: []Project{
		{ID: "a", Name: "alpha", Path: pa},
		{ID: "b", Name: "beta", Path: pb},
	}}
	s.Create(w)

	dir, err := s.CombinedDir(w.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"alpha", "beta"} {
		target, err := os.Readlink(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("readlink %s: %v", name, err)
		}
		if target != pa && target != pb {
			t.Errorf("link %s points at %q", name, target)
		}
	}

	// Second call is idempotent.
	if _, err := s.CombinedDir(w.ID); err != nil {
		t.Fatal(err)
	}
}

func TestCombinedDirEmptyWorkspace(t *testing.T) {
	s := NewService(t.TempDir())
	w := &Workspace{Name: "empty"}
	s.Create(w)
	if _, err := s.CombinedDir(w.ID); err == nil {
		t.Error("expected error for workspace without projects")
	}
}
