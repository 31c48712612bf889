package domain

import "time"

type LogAction string

const (
	LogCalled   LogAction = "called"
	LogRating   LogAction = "rating"
	LogSignal   LogAction = "signal"
	LogWithdraw LogAction = "withdraw"
)

// LogEntry is one event in a room's append-only audit log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    UserID    `json:"userId"`
	Action    LogAction `json:"action"`
	Rating    string    `json:"rating,omitempty"`
	SelfCall  bool      `json:"selfCall,omitempty"`
}
