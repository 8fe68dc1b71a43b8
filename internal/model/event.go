package model

import (
	"fmt"
	"time"
)

// Mode is the operating mode of a running engine.
type Mode string

const (
	ModeNotification Mode = "notification"
	ModeMonitoring   Mode = "monitoring"
)

// ParseMode accepts the canonical names and the short forms used by chat commands.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "notification", "notify", "notifications":
		return ModeNotification, nil
	case "monitoring", "monitor":
		return ModeMonitoring, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Handle identifies an outward message so it can later be edited or deleted.
// The zero value means no message exists.
type Handle int64

// ActivatedEvent is emitted once when a symbol crosses into the active state.
type ActivatedEvent struct {
	Symbol   string   `json:"symbol"`
	Snapshot Snapshot `json:"snapshot"`
}

// UpdatedEvent is emitted on every re-observed active snapshot.
type UpdatedEvent struct {
	Symbol   string   `json:"symbol"`
	Snapshot Snapshot `json:"snapshot"`
}

// DeactivatedEvent is emitted once when a tracked symbol is evicted.
// Duration spans first activation to the last active observation.
type DeactivatedEvent struct {
	Symbol     string        `json:"symbol"`
	Start      time.Time     `json:"start"`
	LastActive time.Time     `json:"last_active"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
}

// ReportReady carries one monitoring payload. IsUpdate is true when the
// payload replaces an earlier one of the same run.
type ReportReady struct {
	Payload  string `json:"payload"`
	IsUpdate bool   `json:"is_update"`
}
