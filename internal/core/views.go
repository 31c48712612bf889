package core

import (
	"sort"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// broadcastPresence derives the member list view and pushes it to the
// whole room. Called on every membership, ready, important, or online
// change.
func (s *SessionManager) broadcastPresence(roomID domain.RoomID) {
	rt, ok := s.runtimes[roomID]
	if !ok {
		return
	}
	members := make([]PresenceEntry, 0, len(rt.Members))
	for id := range rt.Members {
		u := s.users[id]
		if u == nil {
			continue
		}
		_, ready := rt.Ready[id]
		_, imp := rt.Important[id]
		members = append(members, PresenceEntry{
			UserID:    id,
			Name:      u.DisplayName(),
			Role:      u.Role,
			Ready:     ready,
			Online:    s.reg.Online(id),
			Important: imp,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	s.reg.BroadcastRoom(roomID, presenceMsg{Type: "presence", RoomID: roomID, Members: members}, nil)
}

// classRoster returns the cached student list of a class. The cache is
// built once per class and never invalidated, so students registered
// afterwards only appear after a restart.
func (s *SessionManager) classRoster(className string) []RosterEntry {
	if cached, ok := s.roster[className]; ok {
		return cached
	}
	entries := make([]RosterEntry, 0)
	for _, u := range s.users {
		if u.Role == domain.RoleStudent && u.ClassName == className {
			entries = append(entries, RosterEntry{UserID: u.ID, Name: u.DisplayName()})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	s.roster[className] = entries
	return entries
}

// sendRoster pushes the class list, annotated with who is currently in
// the room, to every socket in the room.
func (s *SessionManager) sendRoster(roomID domain.RoomID) {
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	rt := s.ensureRuntime(roomID)
	base := s.classRoster(room.ClassName)
	entries := make([]RosterEntry, len(base))
	for i, e := range base {
		e.InRoom = rt.isMember(e.UserID)
		entries[i] = e
	}
	s.reg.BroadcastRoom(roomID, rosterMsg{Type: "roster", RoomID: roomID, ClassName: room.ClassName, Entries: entries}, nil)
}

// logProjection filters the audit log for one socket. Signal and
// withdraw entries are invisible to everyone; students additionally see
// only their own entries and never the rating value.
func (s *SessionManager) logProjection(c *Client, roomID domain.RoomID) any {
	staffView := c.Role.Staff()
	entries := make([]LogView, 0)
	for _, e := range s.logs[roomID] {
		if e.Action == domain.LogSignal || e.Action == domain.LogWithdraw {
			continue
		}
		if !staffView && e.UserID != c.User {
			continue
		}
		name := ""
		if u := s.users[e.UserID]; u != nil {
			name = u.DisplayName()
		}
		v := LogView{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			UserID:    e.UserID,
			Name:      name,
			Action:    e.Action,
			SelfCall:  e.SelfCall,
		}
		if staffView {
			v.Rating = e.Rating
		}
		entries = append(entries, v)
	}
	msgType := "myLog"
	if staffView {
		msgType = "log"
	}
	return logMsg{Type: msgType, RoomID: roomID, Entries: entries}
}

func (s *SessionManager) sendLogUpdates(roomID domain.RoomID) {
	s.reg.BroadcastFiltered(roomID,
		func(*Client) bool { return true },
		func(c *Client) any { return s.logProjection(c, roomID) })
}

func (s *SessionManager) sendLogTo(c *Client, roomID domain.RoomID) {
	c.send(s.logProjection(c, roomID))
}

func (s *SessionManager) statsViews(room *domain.Room, rt *RoomRuntime, id domain.UserID) (SessionStatsView, TotalStatsView, bool) {
	u := s.users[id]
	if u == nil {
		return SessionStatsView{}, TotalStatsView{}, false
	}
	sc := rt.counters(id)
	session := SessionStatsView{
		UserID:        id,
		Name:          u.DisplayName(),
		Signals:       sc.Signals,
		Calls:         sc.Calls,
		ToiletSeconds: sc.ToiletSeconds,
	}
	rec := u.StatsFor(room.Subject)
	total := TotalStatsView{
		UserID:        id,
		Name:          u.DisplayName(),
		Signals:       rec.Signals,
		Calls:         rec.Calls,
		Ratings:       rec.Ratings,
		ToiletSeconds: rec.ToiletSeconds,
		Daily:         make(map[string]domain.DayStats, len(rec.Daily)),
	}
	for date, d := range rec.Daily {
		total.Daily[date] = *d
	}
	return session, total, true
}

// sendStats pushes the aggregate of all non-staff members to every
// staff socket in the room and a private view to each student.
func (s *SessionManager) sendStats(roomID domain.RoomID) {
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	rt := s.ensureRuntime(roomID)

	agg := statsMsg{Type: "stats", RoomID: roomID}
	ids := make([]domain.UserID, 0, len(rt.Members))
	for id := range rt.Members {
		if u := s.users[id]; u != nil && !u.Role.Staff() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		session, total, ok := s.statsViews(room, rt, id)
		if !ok {
			continue
		}
		agg.Session = append(agg.Session, session)
		agg.Totals = append(agg.Totals, total)
		s.reg.SendToUser(id, myStatsMsg{Type: "myStats", RoomID: roomID, Session: session, Total: total})
	}
	s.reg.BroadcastFiltered(roomID,
		func(c *Client) bool { return c.Role.Staff() },
		func(*Client) any { return agg })
}

func (s *SessionManager) catalogsView() catalogsMsg {
	return catalogsMsg{
		Type:     "catalogs",
		Classes:  sortedKeys(s.classes),
		Subjects: sortedKeys(s.subjects),
	}
}

func (s *SessionManager) broadcastCatalogs() {
	s.reg.BroadcastEach(func(*Client) any { return s.catalogsView() })
}

func (s *SessionManager) sendProfile(u *domain.User) {
	s.reg.SendToUser(u.ID, profileMsg{
		Type:      "profile",
		UserID:    u.ID,
		Role:      u.Role,
		Name:      u.DisplayName(),
		ClassName: u.ClassName,
		Teaching:  u.Teaching,
	})
}
