package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ServerContext is the per-run view of the library server.
type ServerContext struct {
	MachineID string
	Name      string
	Version   string
	// Now is the reference time of every evaluation in the run.
	Now time.Time
}

// newServerContext fetches the server identity. The other collaborators are
// health checked on the way; their failures only produce warnings.
func (e *Engine) newServerContext(ctx context.Context) (*ServerContext, error) {
	id, err := e.library.ServerIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: plex server identity: %w", ErrCollaboratorUnavailable, err)
	}

	e.checkHealth(ctx)

	log.Debug("Connected to Plex", "name", id.Name, "version", id.Version, "machine_id", id.MachineID)
	return &ServerContext{
		MachineID: id.MachineID,
		Name:      id.Name,
		Version:   id.Version,
		Now:       e.now(),
	}, nil
}

func (e *Engine) checkHealth(ctx context.Context) {
	checks := map[string]func(context.Context) error{
		"overseerr": e.requests.Health,
		"tautulli":  e.stats.Health,
	}
	for _, a := range e.arrs {
		checks[a.Name()] = a.Health
	}

	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			if err := check(ctx); err != nil {
				log.Warn("Health check failed", "service", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
