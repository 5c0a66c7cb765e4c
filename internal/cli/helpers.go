package cli

import (
	"fmt"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/ticket"
	"github.com/crewdeck/crewdeck/internal/workspace"
)

// services opens the file-backed stores rooted at the crewdeck home dir.
func services() (*ticket.Store, *workspace.Service) {
	root := config.Dir()
	return ticket.NewStore(root), workspace.NewService(root)
}

// resolveWorkspace accepts a workspace id or name and returns the record.
func resolveWorkspace(ws *workspace.Service, ref string) (*workspace.Workspace, error) {
	if w, err := ws.Get(ref); err == nil {
		return w, nil
	}
	all, err := ws.List()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == ref {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("workspace %q not found (run 'crewdeck workspace list')", ref)
}
