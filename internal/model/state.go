package model

import "time"

// BotState is the process-level state that survives restarts.
type BotState struct {
	LastMode     Mode      `json:"last_mode"`
	SessionCount int       `json:"session_count"`
	TotalUptime  float64   `json:"total_uptime_seconds"`
	LastStarted  time.Time `json:"last_started"`
	UpdatedAt    time.Time `json:"updated_at"`
}
