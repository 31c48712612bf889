package core

import (
	"github.com/google/uuid"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// buildPoll validates question and options and assembles a fresh poll.
func buildPoll(questionText string, options []string, multiple bool) (*domain.Poll, bool) {
	questionText = trimmed(questionText)
	if questionText == "" {
		return nil, false
	}
	opts := make([]domain.PollOption, 0, len(options))
	for _, o := range options {
		if o = trimmed(o); o != "" {
			opts = append(opts, domain.PollOption{ID: uuid.NewString(), Text: o})
		}
	}
	if len(opts) < 2 {
		return nil, false
	}
	return &domain.Poll{
		ID:       uuid.NewString(),
		Question: questionText,
		Options:  opts,
		Multiple: multiple,
		Votes:    make(map[domain.UserID][]string),
	}, true
}

func (s *SessionManager) pollView(roomID domain.RoomID, p *domain.Poll) pollMsg {
	return pollMsg{
		Type:       "poll",
		RoomID:     roomID,
		ID:         p.ID,
		Question:   p.Question,
		Options:    p.Options,
		Multiple:   p.Multiple,
		TotalVotes: len(p.Votes),
	}
}

// pollCreate replaces the room's poll wholesale; the previous poll and
// its votes are gone.
func (s *SessionManager) pollCreate(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	p, valid := buildPoll(cmd.Question, cmd.Options, cmd.Multiple)
	if !valid {
		return Rejected
	}
	rt.Poll = p
	s.reg.BroadcastRoom(room.ID, s.pollView(room.ID, p), nil)
	return Applied
}

func (s *SessionManager) pollVote(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || rt.Poll == nil || !rt.isMember(c.User) {
		return Rejected
	}
	p := rt.Poll

	sel := make([]string, 0, len(cmd.Options))
	for _, id := range cmd.Options {
		if p.HasOption(id) && !contains(sel, id) {
			sel = append(sel, id)
		}
	}
	if len(sel) == 0 {
		return Rejected
	}
	if !p.Multiple {
		sel = sel[:1]
	}

	// Re-voting overwrites; counts are always recomputed in full.
	p.Votes[c.User] = sel
	p.Recount()
	s.reg.BroadcastRoom(room.ID, s.pollView(room.ID, p), nil)
	return Applied
}

func (s *SessionManager) pollTemplateCreate(c *Client, cmd Command) Outcome {
	p, valid := buildPoll(cmd.Question, cmd.Options, cmd.Multiple)
	if !valid {
		return Rejected
	}
	tpl := &domain.PollTemplate{
		ID:       uuid.NewString(),
		Question: p.Question,
		Multiple: p.Multiple,
	}
	for _, o := range p.Options {
		tpl.Options = append(tpl.Options, o.Text)
	}
	s.templates[c.User] = append(s.templates[c.User], tpl)
	s.persist(keyTemplates, s.templates)
	c.send(pollTemplatesMsg{Type: "pollTemplates", Templates: s.templates[c.User]})
	return Applied
}

func (s *SessionManager) pollTemplateList(c *Client) Outcome {
	c.send(pollTemplatesMsg{Type: "pollTemplates", Templates: s.templates[c.User]})
	return Applied
}

// pollTemplateActivate turns one of the caller's templates into a fresh
// poll for the room.
func (s *SessionManager) pollTemplateActivate(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	for _, tpl := range s.templates[c.User] {
		if tpl.ID != cmd.TemplateID {
			continue
		}
		p, valid := buildPoll(tpl.Question, tpl.Options, tpl.Multiple)
		if !valid {
			return Rejected
		}
		rt.Poll = p
		s.reg.BroadcastRoom(room.ID, s.pollView(room.ID, p), nil)
		return Applied
	}
	return Rejected
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
