package model

import "time"

type Chore struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Frequency   int         `json:"frequency"`
	Progress    int         `json:"progress"`
	Completed   bool        `json:"completed"`
	Difficulty  int         `json:"difficulty"`
	Weight      int         `json:"weight"`
	Roommate    RoommateRef `json:"roommate"`
	Deadline    *time.Time  `json:"deadline"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}
