package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chorepet/chorepet/internal/model"
)

// RecordStore loads and saves the whole household in one piece. Load returns
// an empty household when nothing has been saved yet. Save replaces the
// stored collections; a failed Save may leave a partial write behind.
type RecordStore interface {
	Load(ctx context.Context) (*model.Household, error)
	Save(ctx context.Context, h *model.Household) error
}

// TimeLayout is fixed-width RFC 3339 in UTC, so stored timestamps sort as text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// Accept any RFC 3339 value written by hand or by older builds.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
