package model

import "time"

// Backup describes one encrypted household snapshot held in object storage.
type Backup struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
