package core

import (
	"sort"
	"strings"
)

func (s *SessionManager) thoughtStart(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	rt.Thoughts = thoughtState{Active: true}
	s.reg.BroadcastRoom(room.ID, thoughtStateMsg{Type: "thoughtState", RoomID: room.ID, Active: true}, nil)
	return Applied
}

func (s *SessionManager) thoughtSubmit(c *Client, cmd Command) Outcome {
	_, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || !rt.Thoughts.Active || !rt.isMember(c.User) {
		return Rejected
	}
	text := strings.ToLower(trimmed(cmd.Text))
	if text == "" {
		return Rejected
	}
	rt.Thoughts.Entries = append(rt.Thoughts.Entries, text)
	return Applied
}

// thoughtEnd aggregates submissions by frequency and discards the raw
// entries; nothing that leaves this function can be traced to an author.
func (s *SessionManager) thoughtEnd(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || !rt.Thoughts.Active {
		return Rejected
	}

	freq := make(map[string]int)
	for _, t := range rt.Thoughts.Entries {
		freq[t]++
	}
	results := make([]ThoughtResult, 0, len(freq))
	for t, n := range freq {
		results = append(results, ThoughtResult{Text: t, Count: n})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Text < results[j].Text
	})

	rt.Thoughts = thoughtState{}
	s.reg.BroadcastRoom(room.ID, thoughtResultsMsg{Type: "thoughtResults", RoomID: room.ID, Results: results}, nil)
	s.reg.BroadcastRoom(room.ID, thoughtStateMsg{Type: "thoughtState", RoomID: room.ID, Active: false}, nil)
	return Applied
}
