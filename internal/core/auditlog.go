package core

import (
	"github.com/google/uuid"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// appendLog adds one entry to the room's audit log, stamping id and
// time if the caller left them empty, and refreshes the log views.
func (s *SessionManager) appendLog(roomID domain.RoomID, e *domain.LogEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.logs[roomID] = append(s.logs[roomID], e)
	s.persist(keyLogs, s.logs)
	s.sendLogUpdates(roomID)
}

// logDelete removes one entry. Only called and rating entries reverse
// their stat side effect; signal and withdraw entries never do.
func (s *SessionManager) logDelete(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || cmd.EntryID == "" {
		return Rejected
	}
	entries := s.logs[room.ID]
	idx := -1
	for i, e := range entries {
		if e.ID == cmd.EntryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Rejected
	}
	entry := entries[idx]
	s.logs[room.ID] = append(entries[:idx], entries[idx+1:]...)

	reversed := false
	if u := s.users[entry.UserID]; u != nil {
		date := entry.Timestamp.Format("2006-01-02")
		switch entry.Action {
		case domain.LogCalled:
			u.StatsFor(room.Subject).AddCalls(date, -1)
			sc := rt.counters(entry.UserID)
			if sc.Calls > 0 {
				sc.Calls--
			}
			reversed = true
		case domain.LogRating:
			if bucket, valid := domain.RatingIndex(entry.Rating); valid {
				u.StatsFor(room.Subject).AddRating(bucket, -1)
			}
			reversed = true
		}
	}

	s.persist(keyLogs, s.logs)
	if reversed {
		s.persist(keyUsers, s.users)
	}
	s.sendLogUpdates(room.ID)
	if reversed {
		s.sendStats(room.ID)
	}
	return Applied
}
