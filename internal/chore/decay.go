package chore

import (
	"time"

	"github.com/chorepet/chorepet/internal/clock"
	"github.com/chorepet/chorepet/internal/model"
)

// DecayPerChore is the daily health loss for each incomplete chore.
const DecayPerChore = 5

// incompleteCounts groups incomplete chores by assignee.
func incompleteCounts(h *model.Household) map[model.RoommateRef]int {
	counts := make(map[model.RoommateRef]int)
	for _, c := range h.Chores {
		if !c.Completed {
			counts[c.Roommate]++
		}
	}
	return counts
}

// ApplyDecay decrements pet health for every roommate holding incomplete
// chores, at most once per calendar day in loc. It mutates h and returns one
// delta per roommate it touched, in roommate order.
func ApplyDecay(h *model.Household, now time.Time, loc *time.Location) []model.HealthDelta {
	today := clock.Date(now, loc)
	counts := incompleteCounts(h)

	var deltas []model.HealthDelta
	for i := range h.Roommates {
		r := &h.Roommates[i]
		n := counts[r.Ref()]
		if n == 0 || r.LastHealthDecrementDate == today {
			continue
		}
		before := r.PetHealth
		r.PetHealth = model.ClampHealth(r.PetHealth - DecayPerChore*n)
		r.LastHealthDecrementDate = today
		r.UpdatedAt = now
		deltas = append(deltas, model.HealthDelta{
			Username:         r.Username,
			Before:           before,
			After:            r.PetHealth,
			IncompleteChores: n,
		})
	}
	return deltas
}
