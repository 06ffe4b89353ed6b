package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PollRun is the aggregate record of one scheduler cycle.
type PollRun struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	SearchesChecked int        `json:"searches_checked" db:"searches_checked"`
	CarsFound       int        `json:"cars_found" db:"cars_found"`
	CarsNew         int        `json:"cars_new" db:"cars_new"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
}
