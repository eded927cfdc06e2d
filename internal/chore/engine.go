package chore

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/chorepet/chorepet/internal/clock"
	apperrors "github.com/chorepet/chorepet/internal/errors"
	"github.com/chorepet/chorepet/internal/model"
	"github.com/chorepet/chorepet/internal/store"
)

// HealthReward is the pet health granted when a chore cycle completes.
const HealthReward = 10

// Settings tune engine defaults.
type Settings struct {
	// Location decides where calendar days start for decay. Nil means UTC.
	Location         *time.Location
	DefaultPetHealth int
	DefaultCapacity  int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Location:         time.UTC,
		DefaultPetHealth: 80,
		DefaultCapacity:  50,
	}
}

// Engine applies chore and roommate transitions against a RecordStore. Each
// call loads the whole household, applies one transition, and saves it back.
// Calls on one Engine are serialised.
type Engine struct {
	mu       sync.Mutex
	store    store.RecordStore
	clock    clock.Adjustable
	settings Settings
	logger   *slog.Logger
	entropy  io.Reader
}

func NewEngine(rs store.RecordStore, clk clock.Adjustable, settings Settings, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Engine{
		store:    rs,
		clock:    clk,
		settings: settings,
		logger:   logger.With("component", "engine"),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// NewChore is the input to CreateChore. Zero Frequency or Difficulty means
// the default.
type NewChore struct {
	Name       string `json:"name"`
	Frequency  int    `json:"frequency"`
	Difficulty int    `json:"difficulty"`
}

// AdvanceResult is the outcome of one progress step.
type AdvanceResult struct {
	Chore ChoreWithStatus `json:"chore"`
	// Rewarded is true when this step completed the cycle, whether or not
	// the chore was then handed to someone else.
	Rewarded         bool   `json:"rewarded"`
	Reassigned       bool   `json:"reassigned"`
	PreviousRoommate string `json:"previous_roommate,omitempty"`
}

// ChoreFilter narrows ListChores. Nil Completed and empty Roommate match all.
type ChoreFilter struct {
	Completed *bool
	Roommate  string
}

func (e *Engine) load(ctx context.Context) (*model.Household, error) {
	h, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error("failed to load household", "error", err)
		return nil, apperrors.NewStoreRead(err)
	}
	return h, nil
}

func (e *Engine) save(ctx context.Context, h *model.Household) error {
	if err := e.store.Save(ctx, h); err != nil {
		e.logger.Error("failed to save household", "error", err)
		return apperrors.NewStoreWrite(err)
	}
	return nil
}

// loadDecayed loads the household and applies any decay owed for today,
// saving only when something changed.
func (e *Engine) loadDecayed(ctx context.Context) (*model.Household, []model.HealthDelta, time.Time, error) {
	h, err := e.load(ctx)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	now := e.clock.Now()
	deltas := ApplyDecay(h, now, e.settings.Location)
	if len(deltas) == 0 {
		return h, nil, now, nil
	}
	if err := e.save(ctx, h); err != nil {
		return nil, nil, time.Time{}, err
	}
	for _, d := range deltas {
		e.logger.Info("pet health decayed",
			"username", d.Username,
			"before", d.Before,
			"after", d.After,
			"incomplete_chores", d.IncompleteChores,
		)
	}
	return h, deltas, now, nil
}

func (e *Engine) newID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), e.entropy)
	if err != nil {
		return "", apperrors.NewInternal(err)
	}
	return id.String(), nil
}

// weightOf returns the stored weight, recomputing it for legacy records
// saved before weight existed.
func weightOf(c *model.Chore) int {
	if c.Weight > 0 {
		return c.Weight
	}
	return Weight(c.Difficulty, c.Frequency)
}

func validateNewChore(in *NewChore) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperrors.NewInvalidRequest("name is required")
	}
	if utf8.RuneCountInString(in.Name) > MaxNameLength {
		return apperrors.NewInvalidRequest("name must be at most 100 characters")
	}
	if in.Frequency == 0 {
		in.Frequency = DefaultFrequency
	}
	if in.Frequency < MinFrequency || in.Frequency > MaxFrequency {
		return apperrors.NewInvalidRequest("frequency must be between 1 and 50")
	}
	if in.Difficulty == 0 {
		in.Difficulty = DefaultDifficulty
	}
	if in.Difficulty < MinDifficulty || in.Difficulty > MaxDifficulty {
		return apperrors.NewInvalidRequest("difficulty must be between 1 and 5")
	}
	return nil
}

// CreateChore assigns a new chore to the roommate with the most capacity.
func (e *Engine) CreateChore(ctx context.Context, in NewChore) (*ChoreWithStatus, error) {
	if err := validateNewChore(&in); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	weight := Weight(in.Difficulty, in.Frequency)
	assignee, err := Assign(h.RoommatePointers(""), weight)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	id, err := e.newID(now)
	if err != nil {
		return nil, err
	}

	Deduct(assignee, weight)
	assignee.UpdatedAt = now

	deadline := now.Add(DeadlineWindow)
	c := model.Chore{
		ID:         id,
		Name:       in.Name,
		Frequency:  in.Frequency,
		Difficulty: in.Difficulty,
		Weight:     weight,
		Roommate:   assignee.Ref(),
		Deadline:   &deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	h.Chores = append(h.Chores, c)

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}

	e.logger.Info("chore created",
		"chore_id", c.ID,
		"roommate", assignee.Username,
		"weight", weight,
		"capacity_left", assignee.CapacityScore,
	)
	out := WithStatus(c, now)
	return &out, nil
}

// ChoreUpdate edits a chore in place. Nil fields are left unchanged.
type ChoreUpdate struct {
	Name       *string `json:"name"`
	Difficulty *int    `json:"difficulty"`
}

func validateChoreUpdate(in *ChoreUpdate) error {
	if in.Name == nil && in.Difficulty == nil {
		return apperrors.NewInvalidRequest("name or difficulty is required")
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperrors.NewInvalidRequest("name must not be empty")
		}
		if utf8.RuneCountInString(name) > MaxNameLength {
			return apperrors.NewInvalidRequest("name must be at most 100 characters")
		}
		in.Name = &name
	}
	if in.Difficulty != nil && (*in.Difficulty < MinDifficulty || *in.Difficulty > MaxDifficulty) {
		return apperrors.NewInvalidRequest("difficulty must be between 1 and 5")
	}
	return nil
}

// UpdateChore renames a chore or changes its difficulty. The weight charged
// at creation is kept, so capacity moves by the same amount on completion
// and delete as it did on assignment.
func (e *Engine) UpdateChore(ctx context.Context, id string, in ChoreUpdate) (*ChoreWithStatus, error) {
	if err := validateChoreUpdate(&in); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := h.ChoreIndex(id)
	if idx < 0 {
		return nil, apperrors.NewNotFound("chore", id)
	}

	now := e.clock.Now()
	c := &h.Chores[idx]
	c.Weight = weightOf(c)
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Difficulty != nil {
		c.Difficulty = *in.Difficulty
	}
	c.UpdatedAt = now

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}
	e.logger.Info("chore updated", "chore_id", c.ID, "difficulty", c.Difficulty, "weight", c.Weight)

	out := WithStatus(*c, now)
	return &out, nil
}

// AdvanceChore records one completion step. When progress reaches the
// frequency the assignee is rewarded and the chore moves to another roommate
// with a fresh cycle. With nobody else to take it, the chore stays completed.
func (e *Engine) AdvanceChore(ctx context.Context, id string) (*AdvanceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := h.ChoreIndex(id)
	if idx < 0 {
		return nil, apperrors.NewNotFound("chore", id)
	}
	c := &h.Chores[idx]
	if c.Completed {
		return nil, apperrors.NewAlreadyCompleted(id)
	}
	assignee := h.Roommate(c.Roommate)
	if assignee == nil {
		return nil, apperrors.NewNotFound("roommate", string(c.Roommate))
	}

	now := e.clock.Now()
	result := &AdvanceResult{}

	c.Progress++
	if c.Progress >= c.Frequency {
		weight := weightOf(c)

		c.Progress = c.Frequency
		c.Completed = true
		completedAt := now
		c.CompletedAt = &completedAt

		assignee.PetHealth = model.ClampHealth(assignee.PetHealth + HealthReward)
		assignee.CapacityScore += weight
		assignee.UpdatedAt = now
		result.Rewarded = true

		if others := h.RoommatePointers(c.Roommate); len(others) > 0 {
			next, err := Assign(others, weight)
			if err != nil {
				return nil, err
			}
			deadline := now.Add(DeadlineWindow)
			c.Progress = 0
			c.Completed = false
			c.CompletedAt = nil
			c.Roommate = next.Ref()
			c.Deadline = &deadline
			Deduct(next, weight)
			next.UpdatedAt = now

			result.Reassigned = true
			result.PreviousRoommate = assignee.Username
		}
	}
	c.UpdatedAt = now

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}

	if result.Rewarded {
		e.logger.Info("chore cycle completed",
			"chore_id", c.ID,
			"rewarded", assignee.Username,
			"pet_health", assignee.PetHealth,
			"reassigned_to", string(c.Roommate),
			"reassigned", result.Reassigned,
		)
	}
	result.Chore = WithStatus(*c, now)
	return result, nil
}

// ResetChore clears progress and completion. Capacity and deadline are left
// alone.
func (e *Engine) ResetChore(ctx context.Context, id string) (*ChoreWithStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := h.ChoreIndex(id)
	if idx < 0 {
		return nil, apperrors.NewNotFound("chore", id)
	}

	now := e.clock.Now()
	c := &h.Chores[idx]
	c.Progress = 0
	c.Completed = false
	c.CompletedAt = nil
	c.UpdatedAt = now

	if err := e.save(ctx, h); err != nil {
		return nil, err
	}
	out := WithStatus(*c, now)
	return &out, nil
}

// DeleteChore removes a chore. An incomplete chore gives its weight back to
// the assignee; a completed one already did so on completion.
func (e *Engine) DeleteChore(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.load(ctx)
	if err != nil {
		return err
	}
	idx := h.ChoreIndex(id)
	if idx < 0 {
		return apperrors.NewNotFound("chore", id)
	}

	c := h.Chores[idx]
	if !c.Completed {
		if assignee := h.Roommate(c.Roommate); assignee != nil {
			assignee.CapacityScore += weightOf(&c)
			assignee.UpdatedAt = e.clock.Now()
		} else {
			e.logger.Warn("deleting chore with unknown assignee", "chore_id", c.ID, "roommate", string(c.Roommate))
		}
	}
	h.Chores = append(h.Chores[:idx], h.Chores[idx+1:]...)

	if err := e.save(ctx, h); err != nil {
		return err
	}
	e.logger.Info("chore deleted", "chore_id", id)
	return nil
}

// GetChore returns one chore after applying any pending decay.
func (e *Engine) GetChore(ctx context.Context, id string) (*ChoreWithStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, _, now, err := e.loadDecayed(ctx)
	if err != nil {
		return nil, err
	}
	idx := h.ChoreIndex(id)
	if idx < 0 {
		return nil, apperrors.NewNotFound("chore", id)
	}
	out := WithStatus(h.Chores[idx], now)
	return &out, nil
}

// ListChores applies pending decay, then returns matching chores newest
// first.
func (e *Engine) ListChores(ctx context.Context, f ChoreFilter) ([]ChoreWithStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, _, now, err := e.loadDecayed(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ChoreWithStatus, 0, len(h.Chores))
	for _, c := range h.Chores {
		if f.Completed != nil && c.Completed != *f.Completed {
			continue
		}
		if f.Roommate != "" && string(c.Roommate) != f.Roommate {
			continue
		}
		out = append(out, WithStatus(c, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// RunDecay applies today's decay and reports what changed.
func (e *Engine) RunDecay(ctx context.Context) ([]model.HealthDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, deltas, _, err := e.loadDecayed(ctx)
	return deltas, err
}

// AdvanceDemoTime moves the simulated clock forward by d and runs decay for
// the new day.
func (e *Engine) AdvanceDemoTime(ctx context.Context, d time.Duration) (model.DemoStatus, []model.HealthDelta, error) {
	if d <= 0 {
		return model.DemoStatus{}, nil, apperrors.NewInvalidRequest("duration must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.clock.Advance(d)
	e.logger.Info("demo time advanced", "by", d.String(), "offset", e.clock.Offset().String())

	_, deltas, _, err := e.loadDecayed(ctx)
	if err != nil {
		return e.demoStatus(), nil, err
	}
	return e.demoStatus(), deltas, nil
}

// ResetDemoTime returns the simulated clock to real time.
func (e *Engine) ResetDemoTime() model.DemoStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clock.Reset()
	e.logger.Info("demo time reset")
	return e.demoStatus()
}

// DemoStatus reports the simulated clock.
func (e *Engine) DemoStatus() model.DemoStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.demoStatus()
}

func (e *Engine) demoStatus() model.DemoStatus {
	return model.DemoStatus{
		OffsetDays:   e.clock.Offset().Hours() / 24,
		SimulatedNow: e.clock.Now(),
		ActualNow:    e.clock.Real(),
	}
}
