package model

import "time"

// SavedStatus is the lifecycle state of a bookmarked aide.
type SavedStatus string

const (
	SavedStatusSaved    SavedStatus = "saved"
	SavedStatusApplied  SavedStatus = "applied"
	SavedStatusReceived SavedStatus = "received"
	SavedStatusRejected SavedStatus = "rejected"
)

// savedTransitions is the legal transition graph. Terminal states have no
// outgoing edges.
var savedTransitions = map[SavedStatus][]SavedStatus{
	SavedStatusSaved:   {SavedStatusApplied},
	SavedStatusApplied: {SavedStatusReceived, SavedStatusRejected},
}

// Valid reports whether s is a known status.
func (s SavedStatus) Valid() bool {
	switch s {
	case SavedStatusSaved, SavedStatusApplied, SavedStatusReceived, SavedStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s SavedStatus) Terminal() bool {
	return s == SavedStatusReceived || s == SavedStatusRejected
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to SavedStatus) bool {
	for _, next := range savedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SavedAide is a user's bookmark of an estimated aide. Name, category and
// amount are copied at save time so later catalog edits do not alter it.
type SavedAide struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	ProgramID     string      `json:"program_id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	MonthlyAmount int         `json:"monthly_amount"`
	SimulationID  *string     `json:"simulation_id,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	Status        SavedStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	AppliedAt     *time.Time  `json:"applied_at,omitempty"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
}
