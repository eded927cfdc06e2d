package model

import "time"

// RoommateRef references a roommate by username. Chores hold one; the engine
// resolves it against the loaded roommate set before acting on it.
type RoommateRef string

type Roommate struct {
	Username                string    `json:"username"`
	PetHealth               int       `json:"pet_health"`
	CapacityScore           int       `json:"capacity_score"`
	LastHealthDecrementDate string    `json:"last_health_decrement_date,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Ref returns the reference chores use to point at this roommate.
func (r *Roommate) Ref() RoommateRef {
	return RoommateRef(r.Username)
}

const (
	MinPetHealth = 0
	MaxPetHealth = 100
)

// ClampHealth bounds h to [MinPetHealth, MaxPetHealth].
func ClampHealth(h int) int {
	if h < MinPetHealth {
		return MinPetHealth
	}
	if h > MaxPetHealth {
		return MaxPetHealth
	}
	return h
}
