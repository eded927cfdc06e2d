package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chorepet/chorepet/internal/model"
)

// HouseholdStore is the SQLite-backed RecordStore.
type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

const roommateCols = `username, pet_health, capacity_score, last_health_decrement_date, created_at, updated_at`

const choreCols = `id, name, frequency, progress, completed, difficulty, weight, roommate, deadline, created_at, updated_at, completed_at`

func scanRoommate(scanner interface{ Scan(...any) error }) (*model.Roommate, error) {
	var r model.Roommate
	var lastDecrement sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&r.Username, &r.PetHealth, &r.CapacityScore, &lastDecrement, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.LastHealthDecrementDate = lastDecrement.String
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var roommate string
	var deadline, completedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID, &c.Name, &c.Frequency, &c.Progress, &c.Completed,
		&c.Difficulty, &c.Weight, &roommate, &deadline,
		&createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Roommate = model.RoommateRef(roommate)
	if c.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, err
	}
	if c.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads both collections. Roommates come back in insertion order.
func (s *HouseholdStore) Load(ctx context.Context) (*model.Household, error) {
	h := model.NewHousehold()

	rows, err := s.db.QueryContext(ctx, `SELECT `+roommateCols+` FROM roommates ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roommates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRoommate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roommate: %w", err)
		}
		h.Roommates = append(h.Roommates, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roommates: %w", err)
	}

	choreRows, err := s.db.QueryContext(ctx, `SELECT `+choreCols+` FROM chores ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer choreRows.Close()

	for choreRows.Next() {
		c, err := scanChore(choreRows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		h.Chores = append(h.Chores, *c)
	}
	return h, choreRows.Err()
}

// Save replaces both collections inside one transaction.
func (s *HouseholdStore) Save(ctx context.Context, h *model.Household) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chores`); err != nil {
		return fmt.Errorf("clear chores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM roommates`); err != nil {
		return fmt.Errorf("clear roommates: %w", err)
	}

	roommateStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO roommates (position, `+roommateCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare roommate insert: %w", err)
	}
	defer roommateStmt.Close()

	for i, r := range h.Roommates {
		var lastDecrement sql.NullString
		if r.LastHealthDecrementDate != "" {
			lastDecrement = sql.NullString{String: r.LastHealthDecrementDate, Valid: true}
		}
		if _, err := roommateStmt.ExecContext(ctx,
			i, r.Username, r.PetHealth, r.CapacityScore, lastDecrement,
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert roommate %s: %w", r.Username, err)
		}
	}

	choreStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chores (`+choreCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare chore insert: %w", err)
	}
	defer choreStmt.Close()

	for _, c := range h.Chores {
		if _, err := choreStmt.ExecContext(ctx,
			c.ID, c.Name, c.Frequency, c.Progress, c.Completed,
			c.Difficulty, c.Weight, string(c.Roommate), formatNullTime(c.Deadline),
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt), formatNullTime(c.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert chore %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}
