package chore

import (
	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
)

// Assign picks the roommate with the most capacity among those that can
// absorb weight. When nobody can, the roommate with the most capacity
// overall wins. Ties go to the earliest candidate.
func Assign(candidates []*model.Roommate, weight int) (*model.Roommate, error) {
	if len(candidates) == 0 {
		return nil, apperrors.NewNoAssigneeAvailable()
	}

	var best, fallback *model.Roommate
	for _, r := range candidates {
		if fallback == nil || r.CapacityScore > fallback.CapacityScore {
			fallback = r
		}
		if r.CapacityScore < weight {
			continue
		}
		if best == nil || r.CapacityScore > best.CapacityScore {
			best = r
		}
	}
	if best != nil {
		return best, nil
	}
	return fallback, nil
}

// Deduct takes weight out of r's capacity, never going below zero.
func Deduct(r *model.Roommate, weight int) {
	r.CapacityScore -= weight
	if r.CapacityScore < 0 {
		r.CapacityScore = 0
	}
}
