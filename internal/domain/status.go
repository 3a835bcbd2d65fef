package domain

import "time"

// Status is the snapshot written to the status file for external supervisors.
type Status struct {
	PID       int       `json:"pid"`
	State     string    `json:"state"`
	Previous  string    `json:"previous,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
