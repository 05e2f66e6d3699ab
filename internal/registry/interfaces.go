package registry

import (
	"context"

	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
)

// RegistryFinder is the lookup half of the hub needed by Resolver.
type RegistryFinder interface {
	FindRegistry(ctx context.Context, name string) (*hub.Registry, error)
}

// HubClient is the subset of Automation Hub operations needed by Indexer.
type HubClient interface {
	RegistryFinder
	Authenticate(ctx context.Context) error
	ServerVersion(ctx context.Context) (string, error)
	TriggerIndex(ctx context.Context, id string) (string, error)
	GetTask(ctx context.Context, task string) (*hub.Task, error)
}

var _ HubClient = (*hub.Client)(nil)
