package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// Storage is the unified persistence boundary. Branch state, offered
// catalogs and convergence schedules live in Redis; premises are
// authored YAML files on disk. The engine itself never calls Storage:
// the surrounding application loads before and saves after each
// resolution.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Branch state (Redis-backed). Load returns nil, nil when the
	// branch does not exist.
	SaveBranchState(ctx context.Context, id uuid.UUID, b *branch.BranchState) error
	LoadBranchState(ctx context.Context, id uuid.UUID) (*branch.BranchState, error)
	DeleteBranchState(ctx context.Context, id uuid.UUID) error

	// Offered catalog per branch (Redis-backed). The catalog is
	// regenerated on every resolution and never carried over.
	SaveCatalog(ctx context.Context, id uuid.UUID, choices []narrative.Choice) error
	LoadCatalog(ctx context.Context, id uuid.UUID) ([]narrative.Choice, error)

	// Convergence points per branch (Redis-backed).
	SaveConvergencePoints(ctx context.Context, id uuid.UUID, points []convergence.Point) error
	LoadConvergencePoints(ctx context.Context, id uuid.UUID) ([]convergence.Point, error)

	// Premise operations (filesystem-backed)
	ListPremises(ctx context.Context) (map[string]string, error)
	GetPremise(ctx context.Context, id string) (*narrative.Premise, error)
}
