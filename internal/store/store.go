// Package store persists the program catalog, simulation history and saved
// aides behind a single interface with Postgres and SQLite drivers.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aid-simulator/internal/model"
)

// Sentinel errors returned (wrapped) by every driver.
var (
	ErrNotFound = eris.New("store: not found")
	ErrConflict = eris.New("store: conflict")
	ErrStale    = eris.New("store: stale status")
)

// DefaultListLimit caps list queries that do not set their own limit.
const DefaultListLimit = 100

// StatusUpdate is a compare-and-set status change on a saved aide. The row is
// only updated while its current status still equals From. Nil stamps leave
// the stored value untouched.
type StatusUpdate struct {
	ID         string
	From       model.SavedStatus
	To         model.SavedStatus
	UpdatedAt  time.Time
	AppliedAt  *time.Time
	ResolvedAt *time.Time
}

// Store defines the persistence interface for the simulator.
type Store interface {
	// Catalog
	RegionPrograms(ctx context.Context, slug string) ([]model.ProgramRecord, error)
	NationalPrograms(ctx context.Context) ([]model.ProgramRecord, error)
	UpsertPrograms(ctx context.Context, programs []model.ProgramRecord) (int64, error)

	// Simulation history
	InsertSimulation(ctx context.Context, result *model.SimulationResult) error
	GetSimulation(ctx context.Context, id string) (*model.SimulationResult, error)
	ListSimulations(ctx context.Context, userID string, limit int) ([]model.SimulationResult, error)

	// Saved aides
	InsertSavedAide(ctx context.Context, aide *model.SavedAide) error
	GetSavedAide(ctx context.Context, id string) (*model.SavedAide, error)
	ListSavedAides(ctx context.Context, userID string) ([]model.SavedAide, error)
	UpdateSavedAideStatus(ctx context.Context, u StatusUpdate) error
	DeleteSavedAide(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// regionPattern is the LIKE pattern for prefix matches on a region slug.
// Slugs only carry [a-z0-9-], so no escaping is needed.
func regionPattern(slug string) string {
	return slug + "%"
}
