package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chorepet/chorepet/internal/model"
)

// FileStore keeps the household in a single JSON document shaped like
// {"users": [...], "chores": [...]}.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(_ context.Context) (*model.Household, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.NewHousehold(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	h := model.NewHousehold()
	if len(data) == 0 {
		return h, nil
	}
	if err := decodeDocument(data, h); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if h.Roommates == nil {
		h.Roommates = []model.Roommate{}
	}
	if h.Chores == nil {
		h.Chores = []model.Chore{}
	}
	return h, nil
}

// Save writes to a temp file in the same directory and renames it over the
// previous document.
func (s *FileStore) Save(_ context.Context, h *model.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode household: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".household-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// legacyRoommate and legacyChore hold the camelCase keys written by the
// earlier Node backend. A key that is present overrides the snake_case
// field, so old db.json files load without losing health or timestamps.
type legacyRoommate struct {
	PetHealth               *int       `json:"petHealth"`
	CapacityScore           *int       `json:"capacityScore"`
	LastHealthDecrementDate *string    `json:"lastHealthDecrementDate"`
	CreatedAt               *time.Time `json:"createdAt"`
	UpdatedAt               *time.Time `json:"updatedAt"`
}

type legacyChore struct {
	CreatedAt   *time.Time `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

type rawDocument struct {
	Users  []json.RawMessage `json:"users"`
	Chores []json.RawMessage `json:"chores"`
}

func decodeDocument(data []byte, h *model.Household) error {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for i, raw := range doc.Users {
		var r model.Roommate
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		var legacy legacyRoommate
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if legacy.PetHealth != nil {
			r.PetHealth = model.ClampHealth(*legacy.PetHealth)
		}
		if legacy.CapacityScore != nil {
			r.CapacityScore = *legacy.CapacityScore
		}
		if legacy.LastHealthDecrementDate != nil {
			r.LastHealthDecrementDate = normalizeDate(*legacy.LastHealthDecrementDate)
		}
		if legacy.CreatedAt != nil {
			r.CreatedAt = legacy.CreatedAt.UTC()
		}
		if legacy.UpdatedAt != nil {
			r.UpdatedAt = legacy.UpdatedAt.UTC()
		}
		h.Roommates = append(h.Roommates, r)
	}

	for i, raw := range doc.Chores {
		var c model.Chore
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("chores[%d]: %w", i, err)
		}
		var legacy legacyChore
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return fmt.Errorf("chores[%d]: %w", i, err)
		}
		if legacy.CreatedAt != nil {
			c.CreatedAt = legacy.CreatedAt.UTC()
		}
		if legacy.UpdatedAt != nil {
			c.UpdatedAt = legacy.UpdatedAt.UTC()
		}
		if legacy.CompletedAt != nil {
			t := legacy.CompletedAt.UTC()
			c.CompletedAt = &t
		}
		h.Chores = append(h.Chores, c)
	}
	return nil
}

// normalizeDate accepts a bare YYYY-MM-DD or a full timestamp and keeps the
// calendar day.
func normalizeDate(v string) string {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	return v
}
