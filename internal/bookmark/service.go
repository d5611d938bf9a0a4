// Package bookmark manages a user's saved aides and their application status.
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/metrics"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/store"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

var (
	// ErrDuplicate is returned when the user already saved the program.
	ErrDuplicate = eris.New("bookmark: program already saved")
	// ErrNotFound is returned for unknown ids and for other users' rows.
	ErrNotFound = eris.New("bookmark: saved aide not found")
)

// TransitionError reports an illegal status change.
type TransitionError struct {
	From model.SavedStatus
	To   model.SavedStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("bookmark: cannot move from %q to %q", e.From, e.To)
}

// Store is the persistence side of saved aides.
type Store interface {
	InsertSavedAide(ctx context.Context, aide *model.SavedAide) error
	GetSavedAide(ctx context.Context, id string) (*model.SavedAide, error)
	ListSavedAides(ctx context.Context, userID string) ([]model.SavedAide, error)
	UpdateSavedAideStatus(ctx context.Context, u store.StatusUpdate) error
	DeleteSavedAide(ctx context.Context, id string) error
}

// SaveRequest is a snapshot of the aide being saved.
type SaveRequest struct {
	ProgramID     string  `json:"program_id" validate:"max=128"`
	Name          string  `json:"name" validate:"required,max=256"`
	Category      string  `json:"category" validate:"max=64"`
	MonthlyAmount int     `json:"monthly_amount" validate:"gte=0"`
	SimulationID  *string `json:"simulation_id,omitempty" validate:"omitempty,max=64"`
	Notes         string  `json:"notes" validate:"max=2000"`
}

// Service implements the bookmark workflow.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewService creates a Service over st.
func NewService(st Store) *Service {
	return &Service{store: st, now: time.Now, newID: uuid.NewString}
}

// Save bookmarks an aide in the saved state. Saves without a program id get
// one derived from the name.
func (s *Service) Save(ctx context.Context, userID string, req SaveRequest) (*model.SavedAide, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	programID := strings.TrimSpace(req.ProgramID)
	if programID == "" {
		slug := textnorm.Slug(req.Name)
		if slug == "" {
			return nil, eris.Wrap(model.ErrInvalid, "name yields an empty program id")
		}
		programID = "custom-" + slug
	}

	now := s.now().UTC()
	aide := &model.SavedAide{
		ID:            s.newID(),
		UserID:        userID,
		ProgramID:     programID,
		Name:          req.Name,
		Category:      req.Category,
		MonthlyAmount: req.MonthlyAmount,
		SimulationID:  req.SimulationID,
		Notes:         req.Notes,
		Status:        model.SavedStatusSaved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertSavedAide(ctx, aide); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, eris.Wrapf(ErrDuplicate, "program %s", programID)
		}
		return nil, eris.Wrap(err, "bookmark: save")
	}

	zap.L().Info("bookmark saved",
		zap.String("user_id", userID),
		zap.String("saved_aide_id", aide.ID),
		zap.String("program_id", programID),
	)
	return aide, nil
}

// List returns the user's saved aides.
func (s *Service) List(ctx context.Context, userID string) ([]model.SavedAide, error) {
	aides, err := s.store.ListSavedAides(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "bookmark: list")
	}
	return aides, nil
}

// Get returns one of the user's saved aides.
func (s *Service) Get(ctx context.Context, userID, id string) (*model.SavedAide, error) {
	aide, err := s.store.GetSavedAide(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "saved aide %s", id)
		}
		return nil, eris.Wrap(err, "bookmark: get")
	}
	if aide.UserID != userID {
		return nil, eris.Wrapf(ErrNotFound, "saved aide %s", id)
	}
	return aide, nil
}

// UpdateStatus moves a saved aide along the status graph, stamping AppliedAt
// on entering applied and ResolvedAt on entering a terminal state. A
// concurrent change between read and write is reported as a TransitionError
// from the status now stored.
func (s *Service) UpdateStatus(ctx context.Context, userID, id string, to model.SavedStatus) (*model.SavedAide, error) {
	aide, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := aide.Status
	if !model.CanTransition(from, to) {
		metrics.SavedAideTransitionsTotal.WithLabelValues(string(from), string(to), "rejected").Inc()
		return nil, &TransitionError{From: from, To: to}
	}

	now := s.now().UTC()
	u := store.StatusUpdate{ID: id, From: from, To: to, UpdatedAt: now}
	if to == model.SavedStatusApplied {
		u.AppliedAt = &now
	}
	if to.Terminal() {
		u.ResolvedAt = &now
	}

	if err := s.store.UpdateSavedAideStatus(ctx, u); err != nil {
		if errors.Is(err, store.ErrStale) {
			metrics.SavedAideTransitionsTotal.WithLabelValues(string(from), string(to), "stale").Inc()
			current, gerr := s.Get(ctx, userID, id)
			if gerr != nil {
				return nil, gerr
			}
			return nil, &TransitionError{From: current.Status, To: to}
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "saved aide %s", id)
		}
		return nil, eris.Wrap(err, "bookmark: update status")
	}
	metrics.SavedAideTransitionsTotal.WithLabelValues(string(from), string(to), "ok").Inc()

	aide.Status = to
	aide.UpdatedAt = now
	if u.AppliedAt != nil {
		aide.AppliedAt = u.AppliedAt
	}
	if u.ResolvedAt != nil {
		aide.ResolvedAt = u.ResolvedAt
	}
	return aide, nil
}

// Remove hard-deletes one of the user's saved aides.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteSavedAide(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrNotFound, "saved aide %s", id)
		}
		return eris.Wrap(err, "bookmark: remove")
	}
	return nil
}
