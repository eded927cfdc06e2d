package chore

import (
	"context"
	"strings"
	"unicode/utf8"

	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
)

// NewRoommate is the input to CreateRoommate. Nil fields take the engine
// defaults.
type NewRoommate struct {
	Username      string `json:"username"`
	PetHealth     *int   `json:"pet_health"`
	CapacityScore *int   `json:"capacity_score"`
}

func roommateView(r model.Roommate, counts map[model.RoommateRef]int) RoommateStatus {
	return RoommateStatus{
		Roommate:         r,
		Mood:             PetMood(r.PetHealth),
		IncompleteChores: counts[r.Ref()],
	}
}

// CreateRoommate adds a roommate with a unique username.
func (e *Engine) CreateRoommate(ctx context.Context, in NewRoommate) (*RoommateStatus, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperrors.NewInvalidRequest("username is required")
	}
	if utf8.RuneCountInString(username) > MaxNameLength {
		return nil, apperrors.NewInvalidRequest("username must be at most 100 characters")
	}

	health := e.settings.DefaultPetHealth
	if in.PetHealth != nil {
		health = *in.PetHealth
	}
	if health < model.MinPetHealth || health > model.MaxPetHealth {
		return nil, apperrors.NewInvalidRequest("pet_health must be between 0 and 100")
	}
	capacity := e.settings.DefaultCapacity
	if in.CapacityScore != nil {
		capacity = *in.CapacityScore
	}
	if capacity < 0 {
		return nil, apperrors.NewInvalidRequest("capacity_score must not be negative")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	if h.Roommate(model.RoommateRef(username)) != nil {
		return nil, apperrors.NewNameAlreadyExists(username)
	}

	now := e.clock.Now()
	r := model.Roommate{
		Username:      username,
		PetHealth:     health,
		CapacityScore: capacity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	h.Roommates = append(h.Roommates, r)

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}
	e.logger.Info("roommate created", "username", username)

	out := roommateView(r, nil)
	return &out, nil
}

// GetRoommate returns one roommate after applying any pending decay.
func (e *Engine) GetRoommate(ctx context.Context, username string) (*RoommateStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, _, _, err := e.loadDecayed(ctx)
	if err != nil {
		return nil, err
	}
	r := h.Roommate(model.RoommateRef(username))
	if r == nil {
		return nil, apperrors.NewNotFound("roommate", username)
	}
	out := roommateView(*r, incompleteCounts(h))
	return &out, nil
}

// ListRoommates returns every roommate in creation order after applying any
// pending decay.
func (e *Engine) ListRoommates(ctx context.Context) ([]RoommateStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, _, _, err := e.loadDecayed(ctx)
	if err != nil {
		return nil, err
	}
	counts := incompleteCounts(h)
	out := make([]RoommateStatus, 0, len(h.Roommates))
	for _, r := range h.Roommates {
		out = append(out, roommateView(r, counts))
	}
	return out, nil
}

// Login is a plain username lookup.
func (e *Engine) Login(ctx context.Context, username string) (*RoommateStatus, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewInvalidRequest("username is required")
	}
	return e.GetRoommate(ctx, username)
}

// AdjustHealth adds delta to a roommate's pet health, clamped to [0, 100].
func (e *Engine) AdjustHealth(ctx context.Context, username string, delta int) (*RoommateStatus, error) {
	return e.updateHealth(ctx, username, func(cur int) int { return cur + delta })
}

// SetHealth replaces a pet's health outright, clamped to 0..100.
func (e *Engine) SetHealth(ctx context.Context, username string, health int) (*RoommateStatus, error) {
	return e.updateHealth(ctx, username, func(int) int { return health })
}

func (e *Engine) updateHealth(ctx context.Context, username string, next func(int) int) (*RoommateStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	r := h.Roommate(model.RoommateRef(username))
	if r == nil {
		return nil, apperrors.NewNotFound("roommate", username)
	}

	before := r.PetHealth
	r.PetHealth = model.ClampHealth(next(r.PetHealth))
	r.UpdatedAt = e.clock.Now()

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}
	e.logger.Info("pet health updated", "username", username, "before", before, "after", r.PetHealth)

	out := roommateView(*r, incompleteCounts(h))
	return &out, nil
}

// DeleteRoommate removes a roommate. It is refused while any chore, finished
// or not, still points at them.
func (e *Engine) DeleteRoommate(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range h.Roommates {
		if h.Roommates[i].Username == username {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.NewNotFound("roommate", username)
	}

	held := 0
	for _, c := range h.Chores {
		if string(c.Roommate) == username {
			held++
		}
	}
	if held > 0 {
		err := apperrors.NewConflict("roommate still has assigned chores")
		err.Details = map[string]any{"username": username, "chores": held}
		return err
	}

	h.Roommates = append(h.Roommates[:idx], h.Roommates[idx+1:]...)
	if err := e.save(ctx, h); err != nil {
		return err
	}
	e.logger.Info("roommate deleted", "username", username)
	return nil
}
