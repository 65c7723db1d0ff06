package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// MockStorage is an in-memory Storage for testing. Behavior can be
// overridden per method via the Func fields.
type MockStorage struct {
	SaveBranchStateFunc       func(ctx context.Context, id uuid.UUID, b *branch.BranchState) error
	LoadBranchStateFunc       func(ctx context.Context, id uuid.UUID) (*branch.BranchState, error)
	DeleteBranchStateFunc     func(ctx context.Context, id uuid.UUID) error
	SaveCatalogFunc           func(ctx context.Context, id uuid.UUID, choices []narrative.Choice) error
	LoadCatalogFunc           func(ctx context.Context, id uuid.UUID) ([]narrative.Choice, error)
	SaveConvergencePointsFunc func(ctx context.Context, id uuid.UUID, points []convergence.Point) error
	LoadConvergencePointsFunc func(ctx context.Context, id uuid.UUID) ([]convergence.Point, error)
	ListPremisesFunc          func(ctx context.Context) (map[string]string, error)
	GetPremiseFunc            func(ctx context.Context, id string) (*narrative.Premise, error)
	PingFunc                  func(ctx context.Context) error

	mu       sync.Mutex
	branches map[uuid.UUID]*branch.BranchState
	catalogs map[uuid.UUID][]narrative.Choice
	points   map[uuid.UUID][]convergence.Point
	premises map[string]*narrative.Premise
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates an empty in-memory storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		branches: make(map[uuid.UUID]*branch.BranchState),
		catalogs: make(map[uuid.UUID][]narrative.Choice),
		points:   make(map[uuid.UUID][]convergence.Point),
		premises: make(map[string]*narrative.Premise),
	}
}

// AddPremise registers a premise for GetPremise/ListPremises.
func (m *MockStorage) AddPremise(p *narrative.Premise) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.premises[p.ID] = p
}

func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) SaveBranchState(ctx context.Context, id uuid.UUID, b *branch.BranchState) error {
	if m.SaveBranchStateFunc != nil {
		return m.SaveBranchStateFunc(ctx, id, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[id] = b.Clone()
	return nil
}

func (m *MockStorage) LoadBranchState(ctx context.Context, id uuid.UUID) (*branch.BranchState, error) {
	if m.LoadBranchStateFunc != nil {
		return m.LoadBranchStateFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[id]
	if !ok {
		return nil, nil
	}
	return b.Clone(), nil
}

func (m *MockStorage) DeleteBranchState(ctx context.Context, id uuid.UUID) error {
	if m.DeleteBranchStateFunc != nil {
		return m.DeleteBranchStateFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.branches, id)
	delete(m.catalogs, id)
	delete(m.points, id)
	return nil
}

func (m *MockStorage) SaveCatalog(ctx context.Context, id uuid.UUID, choices []narrative.Choice) error {
	if m.SaveCatalogFunc != nil {
		return m.SaveCatalogFunc(ctx, id, choices)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs[id] = choices
	return nil
}

func (m *MockStorage) LoadCatalog(ctx context.Context, id uuid.UUID) ([]narrative.Choice, error) {
	if m.LoadCatalogFunc != nil {
		return m.LoadCatalogFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalogs[id], nil
}

func (m *MockStorage) SaveConvergencePoints(ctx context.Context, id uuid.UUID, points []convergence.Point) error {
	if m.SaveConvergencePointsFunc != nil {
		return m.SaveConvergencePointsFunc(ctx, id, points)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[id] = points
	return nil
}

func (m *MockStorage) LoadConvergencePoints(ctx context.Context, id uuid.UUID) ([]convergence.Point, error) {
	if m.LoadConvergencePointsFunc != nil {
		return m.LoadConvergencePointsFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[id], nil
}

func (m *MockStorage) ListPremises(ctx context.Context) (map[string]string, error) {
	if m.ListPremisesFunc != nil {
		return m.ListPremisesFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.premises))
	for id, p := range m.premises {
		out[id] = p.DisplayTitle()
	}
	return out, nil
}

func (m *MockStorage) GetPremise(ctx context.Context, id string) (*narrative.Premise, error) {
	if m.GetPremiseFunc != nil {
		return m.GetPremiseFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.premises[id]
	if !ok {
		return nil, fmt.Errorf("premise not found: %s", id)
	}
	return p, nil
}
