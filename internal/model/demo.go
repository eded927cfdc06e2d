package model

import "time"

// DemoStatus describes the simulated clock.
type DemoStatus struct {
	OffsetDays   float64   `json:"offset_days"`
	SimulatedNow time.Time `json:"simulated_now"`
	ActualNow    time.Time `json:"actual_now"`
}

// HealthDelta records one roommate's health change during a decay pass.
type HealthDelta struct {
	Username         string `json:"username"`
	Before           int    `json:"before"`
	After            int    `json:"after"`
	IncompleteChores int    `json:"incomplete_chores"`
}
