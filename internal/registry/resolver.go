package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
)

// Resolved is a registry together with the identifier used to address it.
type Resolved struct {
	Registry *hub.Registry
	IDField  IDField
	ID       string
}

// Resolver finds registries by name.
type Resolver struct {
	hub RegistryFinder
}

func NewResolver(finder RegistryFinder) *Resolver {
	return &Resolver{hub: finder}
}

// Resolve looks up the registry called name on a hub running serverVersion.
// A missing registry is reported as *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, name, serverVersion string) (*Resolved, error) {
	field := IDFieldFor(serverVersion)

	reg, err := r.hub.FindRegistry(ctx, name)
	if errors.Is(err, hub.ErrNotFound) {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up registry %q: %w", name, err)
	}

	id, ok := reg.Identifier(string(field))
	if !ok {
		return nil, fmt.Errorf("registry %q has no %q field (server version %s)", name, field, serverVersion)
	}

	slog.Debug("registry resolved", "registry", name, "id_field", field, "id", id, "server_version", serverVersion)
	return &Resolved{Registry: reg, IDField: field, ID: id}, nil
}
