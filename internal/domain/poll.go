package domain

type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Poll is the single active question of a room. Creating a new poll
// replaces the previous one together with its votes.
type Poll struct {
	ID       string              `json:"id"`
	Question string              `json:"question"`
	Options  []PollOption        `json:"options"`
	Multiple bool                `json:"multiple"`
	Votes    map[UserID][]string `json:"votes"`
}

// Recount recomputes every option counter from the vote map. Counts are
// never adjusted incrementally, so they cannot drift from the votes.
func (p *Poll) Recount() {
	for i := range p.Options {
		p.Options[i].Count = 0
	}
	for _, sel := range p.Votes {
		for _, optID := range sel {
			for i := range p.Options {
				if p.Options[i].ID == optID {
					p.Options[i].Count++
				}
			}
		}
	}
}

// HasOption reports whether optID names one of the poll's options.
func (p *Poll) HasOption(optID string) bool {
	for i := range p.Options {
		if p.Options[i].ID == optID {
			return true
		}
	}
	return false
}

// PollTemplate is a teacher's reusable poll, independent of any room.
type PollTemplate struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Multiple bool     `json:"multiple"`
}
