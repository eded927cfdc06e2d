package chore

import (
	"math"
	"time"

	"github.com/chorepet/chorepet/internal/model"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
)

// DeadlineWindow is how long an assignee has to finish a chore.
const DeadlineWindow = 7 * 24 * time.Hour

// DefaultDaysLeft is reported for legacy chores saved without a deadline.
const DefaultDaysLeft = 7

type ChoreWithStatus struct {
	model.Chore
	DaysLeft int    `json:"days_left"`
	Status   Status `json:"status"`
}

// DaysLeft rounds the time until deadline up to whole days, floored at zero.
func DaysLeft(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return DefaultDaysLeft
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// ComputeStatus derives the read-time status of c.
func ComputeStatus(c model.Chore, now time.Time) Status {
	if c.Completed {
		return StatusCompleted
	}
	if c.Deadline != nil && !now.Before(*c.Deadline) {
		return StatusOverdue
	}
	return StatusActive
}

// WithStatus annotates c with values computed against now.
func WithStatus(c model.Chore, now time.Time) ChoreWithStatus {
	return ChoreWithStatus{
		Chore:    c,
		DaysLeft: DaysLeft(c.Deadline, now),
		Status:   ComputeStatus(c, now),
	}
}

type Mood string

const (
	MoodDead      Mood = "dead"
	MoodCritical  Mood = "critical"
	MoodFailing   Mood = "failing"
	MoodWeak      Mood = "weak"
	MoodMiserable Mood = "miserable"
	MoodSad       Mood = "sad"
	MoodGloomy    Mood = "gloomy"
	MoodUneasy    Mood = "uneasy"
	MoodContent   Mood = "content"
	MoodGood      Mood = "good"
	MoodHappy     Mood = "happy"
)

// moodBands is indexed by health/10 for health in 1..89; 90 and above is happy.
var moodBands = [...]Mood{
	MoodCritical, MoodFailing, MoodWeak, MoodMiserable, MoodSad,
	MoodGloomy, MoodUneasy, MoodContent, MoodGood,
}

// PetMood maps pet health onto a mood band.
func PetMood(health int) Mood {
	switch {
	case health <= model.MinPetHealth:
		return MoodDead
	case health >= 90:
		return MoodHappy
	}
	return moodBands[health/10]
}

type RoommateStatus struct {
	model.Roommate
	Mood             Mood `json:"mood"`
	IncompleteChores int  `json:"incomplete_chores"`
}
