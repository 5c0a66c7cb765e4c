// Package workspace resolves workspace identifiers to project directories.
// A workspace groups one or more project roots; multi-project workspaces get
// a materialized combined directory with a symlink per project.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/hexid"
)

// Project is one project root inside a workspace.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Workspace is a named group of projects.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Projects  []Project `json:"projects"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service stores the workspace registry at <root>/workspaces.json and owns
// the combined-directory materialization.
type Service struct {
	root string
	mu   sync.Mutex
}

// NewService creates a Service rooted at dir (normally config.Dir()).
func NewService(dir string) *Service {
	return &Service{root: dir}
}

func (s *Service) registryPath() string {
	return filepath.Join(s.root, "workspaces.json")
}

func (s *Service) load() ([]Workspace, error) {
	data, err := os.ReadFile(s.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ws []Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.registryPath(), err)
	}
	return ws, nil
}

func (s *Service) save(ws []Workspace) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}
	if ws == nil {
		ws = []Workspace{}
	}
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.registryPath(), data, 0644)
}

// List returns all registered workspaces.
func (s *Service) List() ([]Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns a workspace by id.
func (s *Service) Get(id string) (*Workspace, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("workspace %s not found", id)
}

// Create registers a workspace, assigning an id when absent.
func (s *Service) Create(w *Workspace) error {
	if w == nil || strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workspace name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if w.ID == "" {
		w.ID = hexid.New()
	}
	for _, existing := range all {
		if existing.ID == w.ID {
			return fmt.Errorf("workspace %s already exists", w.ID)
		}
	}
	for i := range w.Projects {
		if w.Projects[i].ID == "" {
			w.Projects[i].ID = hexid.New()
		}
	}
	w.CreatedAt = time.Now().UTC()
	return s.save(append(all, *w))
}

// AddProject appends a project root to a workspace.
func (s *Service) AddProject(workspaceID string, p Project) error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("project path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID != workspaceID {
			continue
		}
		if p.ID == "" {
			p.ID = hexid.New()
		}
		if p.Name == "" {
			p.Name = filepath.Base(p.Path)
		}
		all[i].Projects = append(all[i].Projects, p)
		return s.save(all)
	}
	return fmt.Errorf("workspace %s not found", workspaceID)
}

// ProjectDir resolves a single project's root path.
func (s *Service) ProjectDir(workspaceID, projectID string) (string, error) {
	w, err := s.Get(workspaceID)
	if err != nil {
		return "", err
	}
	for _, p := range w.Projects {
		if p.ID == projectID {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("project %s not found in workspace %s", projectID, workspaceID)
}

// CombinedDir returns a working directory spanning every project of the
// workspace. Single-project workspaces get the project root directly;
// multi-project workspaces get <root>/workspaces/<id>/combined/ containing
// one symlink per project, refreshed on every call.
func (s *Service) CombinedDir(workspaceID string) (string, error) {
	w, err := s.Get(workspaceID)
	if err != nil {
		return "", err
	}
	if len(w.Projects) == 0 {
		return "", fmt.Errorf("workspace %s has no projects", workspaceID)
	}
	if len(w.Projects) == 1 {
		return w.Projects[0].Path, nil
	}

	dir := filepath.Join(s.root, "workspaces", workspaceID, "combined")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	for _, p := range w.Projects {
		link := filepath.Join(dir, linkName(p))
		if target, err := os.Readlink(link); err == nil && target == p.Path {
			continue
		}
		os.Remove(link)
		if err := os.Symlink(p.Path, link); err != nil {
			return "", fmt.Errorf("linking project %s: %w", p.Name, err)
		}
	}
	return dir, nil
}

func linkName(p Project) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = filepath.Base(p.Path)
	}
	return name
}
