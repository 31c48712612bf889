package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// Store is the key-value persistence collaborator. Saves are best
// effort; in-memory state stays authoritative when one fails.
type Store interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
}

// BlobStore keeps uploaded file bytes and returns a reference path.
type BlobStore interface {
	Put(name string, data []byte) (string, error)
}

// Outcome is the internal result of a command. A Rejected command has
// made no state change and sent no broadcast; the sender gets no reply
// either way.
type Outcome int

const (
	Applied Outcome = iota
	Rejected
)

const (
	keyUsers     = "users"
	keyRooms     = "rooms"
	keyLogs      = "logs"
	keyHomework  = "homework"
	keyTemplates = "pollTemplates"
	keyClasses   = "classes"
	keySubjects  = "subjects"
	keyUploads   = "uploads"
)

// SessionManager owns all mutable session state. Every inbound command
// runs under one lock from mutation through broadcast, which gives the
// same per-message atomicity as a single-threaded event loop.
type SessionManager struct {
	mu    sync.Mutex
	reg   *Registry
	store Store
	blobs BlobStore
	now   func() time.Time

	users     map[domain.UserID]*domain.User
	rooms     map[domain.RoomID]*domain.Room
	runtimes  map[domain.RoomID]*RoomRuntime
	logs      map[domain.RoomID][]*domain.LogEntry
	homework  map[string]*domain.HomeworkEntry
	templates map[domain.UserID][]*domain.PollTemplate
	uploads   []domain.Upload
	classes   map[string]struct{}
	subjects  map[string]struct{}

	// roster cache per class, built on first use and never invalidated.
	roster map[string][]RosterEntry
}

func NewSessionManager(reg *Registry, store Store, blobs BlobStore) *SessionManager {
	s := &SessionManager{
		reg:       reg,
		store:     store,
		blobs:     blobs,
		now:       time.Now,
		users:     make(map[domain.UserID]*domain.User),
		rooms:     make(map[domain.RoomID]*domain.Room),
		runtimes:  make(map[domain.RoomID]*RoomRuntime),
		logs:      make(map[domain.RoomID][]*domain.LogEntry),
		homework:  make(map[string]*domain.HomeworkEntry),
		templates: make(map[domain.UserID][]*domain.PollTemplate),
		classes:   make(map[string]struct{}),
		subjects:  make(map[string]struct{}),
		roster:    make(map[string][]RosterEntry),
	}
	s.restore()
	return s
}

func (s *SessionManager) restore() {
	s.load(keyUsers, &s.users)
	s.load(keyRooms, &s.rooms)
	s.load(keyLogs, &s.logs)
	s.load(keyHomework, &s.homework)
	s.load(keyTemplates, &s.templates)
	s.load(keyUploads, &s.uploads)
	var classes, subjects []string
	s.load(keyClasses, &classes)
	s.load(keySubjects, &subjects)
	for _, c := range classes {
		s.classes[c] = struct{}{}
	}
	for _, sub := range subjects {
		s.subjects[sub] = struct{}{}
	}
	for id, room := range s.rooms {
		if room.Active {
			s.runtimes[id] = newRoomRuntime()
		}
	}
}

func (s *SessionManager) load(key string, v any) {
	if _, err := s.store.Load(key, v); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("key", key).Msg("restore failed")
	}
}

// persist writes one key to the store. Failures are logged and the
// in-memory state keeps serving; there is no rollback.
func (s *SessionManager) persist(key string, v any) {
	if err := s.store.Save(key, v); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("key", key).Msg("save failed")
	}
}

func (s *SessionManager) persistCatalogs() {
	s.persist(keyClasses, sortedKeys(s.classes))
	s.persist(keySubjects, sortedKeys(s.subjects))
}

func (s *SessionManager) today() string {
	return s.now().Format("2006-01-02")
}

// ensureRuntime returns the room's runtime, fully initialized. Called
// at room creation and on join so handlers never meet a half-built one.
func (s *SessionManager) ensureRuntime(id domain.RoomID) *RoomRuntime {
	rt, ok := s.runtimes[id]
	if !ok {
		rt = newRoomRuntime()
		s.runtimes[id] = rt
	}
	return rt
}

// roomFor resolves an explicit or implicit (current) room id.
func (s *SessionManager) roomFor(c *Client, id domain.RoomID) (*domain.Room, *RoomRuntime, bool) {
	if id == "" {
		id = c.Room
	}
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil, false
	}
	return room, s.ensureRuntime(id), true
}

// classMismatch applies the student class rule; staff pass always.
func classMismatch(u *domain.User, room *domain.Room) bool {
	return u.Role == domain.RoleStudent && u.ClassName != room.ClassName
}

// Dispatch runs one authenticated command. The capability table is
// checked once here; handlers only verify state, not roles.
func (s *SessionManager) Dispatch(c *Client, cmd Command) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.User == "" || !Allowed(c.Role, cmd.Kind) {
		return Rejected
	}

	switch cmd.Kind {
	case KindJoin:
		return s.join(c, cmd)
	case KindLeave:
		return s.leave(c)
	case KindReady:
		return s.ready(c, cmd)
	case KindWithdraw:
		return s.withdraw(c, cmd)
	case KindImportant:
		return s.important(c, cmd)
	case KindImportantClear:
		return s.importantClear(c, cmd, cmd.TargetID)
	case KindImportantWithdraw:
		return s.importantClear(c, cmd, c.User)
	case KindToilet:
		return s.toiletRequest(c, cmd)
	case KindToiletAllow:
		return s.toiletAllow(c, cmd)
	case KindToiletBack:
		return s.toiletBack(c, cmd)
	case KindSelfCall:
		return s.selfCall(c, cmd)
	case KindAck:
		return s.ack(c, cmd)
	case KindRate:
		return s.rate(c, cmd)
	case KindQuestionSubmit:
		return s.questionSubmit(c, cmd)
	case KindPollCreate:
		return s.pollCreate(c, cmd)
	case KindPollVote:
		return s.pollVote(c, cmd)
	case KindPollTemplateNew:
		return s.pollTemplateCreate(c, cmd)
	case KindPollTemplateList:
		return s.pollTemplateList(c)
	case KindPollTemplateUse:
		return s.pollTemplateActivate(c, cmd)
	case KindThoughtStart:
		return s.thoughtStart(c, cmd)
	case KindThoughtSubmit:
		return s.thoughtSubmit(c, cmd)
	case KindThoughtEnd:
		return s.thoughtEnd(c, cmd)
	case KindRoomCreate:
		return s.roomCreate(c, cmd)
	case KindRoomClose:
		return s.roomClose(c, cmd)
	case KindRoomList:
		s.sendRoomList(c)
		return Applied
	case KindToggleSelfCall:
		return s.toggleSelfCall(c, cmd)
	case KindHomeworkSet:
		return s.homeworkSet(c, cmd)
	case KindHomeworkList:
		return s.homeworkList(c)
	case KindHomeworkUpload:
		return s.homeworkUpload(c, cmd)
	case KindLogDelete:
		return s.logDelete(c, cmd)
	case KindCreateClass:
		return s.createClass(cmd)
	case KindCreateSubject:
		return s.createSubject(cmd)
	case KindAddTeaching:
		return s.addTeaching(c, cmd)
	}
	return Rejected
}

func (s *SessionManager) join(c *Client, cmd Command) Outcome {
	room, ok := s.rooms[cmd.RoomID]
	if !ok || !room.Active {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil || classMismatch(u, room) {
		return Rejected
	}

	// Leaving other rooms: membership survives only while the toilet
	// workflow is unresolved there; ready and important never survive.
	for rid, rt := range s.runtimes {
		if rid == room.ID || !rt.isMember(c.User) {
			continue
		}
		if !rt.Toilet[c.User].away() {
			delete(rt.Members, c.User)
		}
		delete(rt.Ready, c.User)
		delete(rt.Important, c.User)
		s.broadcastPresence(rid)
	}

	rt := s.ensureRuntime(room.ID)
	rt.Members[c.User] = struct{}{}
	rt.counters(c.User)
	c.Room = room.ID

	s.broadcastPresence(room.ID)
	s.sendRoomSettings(c, room)
	s.sendRoster(room.ID)
	s.sendLogTo(c, room.ID)
	s.sendStats(room.ID)
	if rt.Poll != nil {
		c.send(s.pollView(room.ID, rt.Poll))
	}
	c.send(thoughtStateMsg{Type: "thoughtState", RoomID: room.ID, Active: rt.Thoughts.Active})
	if c.Role.Staff() {
		c.send(questionListMsg{Type: "questionList", RoomID: room.ID, Entries: rt.Questions})
	}

	// Re-announce sticky indicators so lamp UIs survive reconnects.
	if ts := rt.Toilet[c.User]; ts.away() {
		s.reg.BroadcastRoom(room.ID, toiletMsg{Type: "toilet", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), Status: ts.Status}, nil)
	}
	if _, ok := rt.Important[c.User]; ok {
		s.reg.BroadcastRoom(room.ID, importantMsg{Type: "important", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), Status: "pending"}, nil)
	}
	return Applied
}

func (s *SessionManager) leave(c *Client) Outcome {
	if c.Room == "" {
		return Rejected
	}
	s.leaveRoom(c, c.Room)
	return Applied
}

// leaveRoom detaches the socket from its room. Membership and flags are
// kept while the user's toilet workflow is unresolved.
func (s *SessionManager) leaveRoom(c *Client, roomID domain.RoomID) {
	rt, ok := s.runtimes[roomID]
	c.Room = ""
	if !ok {
		return
	}
	if !rt.Toilet[c.User].away() {
		delete(rt.Members, c.User)
		delete(rt.Ready, c.User)
		delete(rt.Important, c.User)
	}
	s.broadcastPresence(roomID)
}

// Disconnect is called when a socket closes for any reason. The room is
// only left when this was the user's last socket in it.
func (s *SessionManager) Disconnect(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Detach(c)
	if c.User == "" {
		return
	}
	roomID := c.Room
	if roomID != "" {
		last := true
		for _, other := range s.reg.ClientsOf(c.User) {
			if other.Room == roomID {
				last = false
				break
			}
		}
		if last {
			s.leaveRoom(c, roomID)
		} else {
			s.broadcastPresence(roomID)
		}
	}
	// Rooms still holding the user through an open toilet workflow see
	// the online change too.
	for rid, rt := range s.runtimes {
		if rid != roomID && rt.isMember(c.User) {
			s.broadcastPresence(rid)
		}
	}
}

func (s *SessionManager) ready(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil || classMismatch(u, room) || !rt.isMember(c.User) {
		return Rejected
	}

	rt.Ready[c.User] = struct{}{}
	u.StatsFor(room.Subject).AddSignals(s.today(), 1)
	rt.counters(c.User).Signals++
	s.persist(keyUsers, s.users)
	s.appendLog(room.ID, &domain.LogEntry{UserID: c.User, Action: domain.LogSignal})

	s.reg.BroadcastRoom(room.ID, readyMsg{Type: "ready", RoomID: room.ID, UserID: c.User, Name: u.DisplayName()}, nil)
	s.broadcastPresence(room.ID)
	s.sendStats(room.ID)
	return Applied
}

func (s *SessionManager) withdraw(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil || !rt.isMember(c.User) {
		return Rejected
	}

	delete(rt.Ready, c.User)
	delete(rt.Important, c.User)
	u.StatsFor(room.Subject).AddSignals(s.today(), -1)
	sc := rt.counters(c.User)
	if sc.Signals > 0 {
		sc.Signals--
	}
	s.persist(keyUsers, s.users)
	s.appendLog(room.ID, &domain.LogEntry{UserID: c.User, Action: domain.LogWithdraw})

	s.reg.BroadcastRoom(room.ID, resetMsg{Type: "reset", RoomID: room.ID, UserID: c.User}, nil)
	s.broadcastPresence(room.ID)
	s.sendStats(room.ID)
	return Applied
}

func (s *SessionManager) important(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || !rt.isMember(c.User) {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil {
		return Rejected
	}
	rt.Important[c.User] = struct{}{}
	s.reg.BroadcastRoom(room.ID, importantMsg{Type: "important", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), Status: "pending"}, nil)
	s.broadcastPresence(room.ID)
	return Applied
}

// importantClear serves both the staff clear and the self withdraw.
func (s *SessionManager) importantClear(c *Client, cmd Command, target domain.UserID) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || target == "" {
		return Rejected
	}
	u := s.users[target]
	if u == nil {
		return Rejected
	}
	if _, flagged := rt.Important[target]; !flagged {
		return Rejected
	}
	delete(rt.Important, target)
	s.reg.BroadcastRoom(room.ID, importantMsg{Type: "important", RoomID: room.ID, UserID: target, Name: u.DisplayName(), Status: "cleared"}, nil)
	s.broadcastPresence(room.ID)
	return Applied
}

func (s *SessionManager) questionSubmit(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || !rt.isMember(c.User) {
		return Rejected
	}
	text := trimmed(cmd.Text)
	if text == "" {
		return Rejected
	}
	q := question{ID: uuid.NewString(), Text: text, Timestamp: s.now()}
	rt.Questions = append(rt.Questions, q)
	// The queue is staff-visible only; students never see it.
	s.reg.BroadcastFiltered(room.ID,
		func(cl *Client) bool { return cl.Role.Staff() },
		func(*Client) any { return questionMsg{Type: "question", RoomID: room.ID, Entry: q} })
	return Applied
}

func (s *SessionManager) toiletRequest(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil || classMismatch(u, room) || !rt.isMember(c.User) {
		return Rejected
	}
	if rt.Toilet[c.User] != nil {
		return Rejected
	}
	rt.Toilet[c.User] = &toiletState{Status: ToiletPending}
	s.reg.BroadcastRoom(room.ID, toiletMsg{Type: "toilet", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), Status: ToiletPending}, nil)
	return Applied
}

func (s *SessionManager) toiletAllow(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || cmd.TargetID == "" {
		return Rejected
	}
	u := s.users[cmd.TargetID]
	ts := rt.Toilet[cmd.TargetID]
	if u == nil || ts == nil || ts.Status != ToiletPending {
		return Rejected
	}
	ts.Status = ToiletAllowed
	ts.Since = s.now()
	s.reg.BroadcastRoom(room.ID, toiletMsg{Type: "toilet", RoomID: room.ID, UserID: cmd.TargetID, Name: u.DisplayName(), Status: ToiletAllowed}, nil)
	s.reg.SendToUser(cmd.TargetID, toiletAllowedMsg{Type: "toiletAllowed", RoomID: room.ID})
	return Applied
}

func (s *SessionManager) toiletBack(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	u := s.users[c.User]
	ts := rt.Toilet[c.User]
	if u == nil || ts == nil || ts.Status != ToiletAllowed {
		return Rejected
	}
	secs := roundToiletSeconds(s.now().Sub(ts.Since))
	delete(rt.Toilet, c.User)
	// The open workflow was the only thing holding membership here once
	// the user moved on to another room.
	if c.Room != room.ID {
		delete(rt.Members, c.User)
		delete(rt.Ready, c.User)
		delete(rt.Important, c.User)
	}
	u.StatsFor(room.Subject).AddToiletSeconds(s.today(), secs)
	rt.counters(c.User).ToiletSeconds += secs
	s.persist(keyUsers, s.users)
	s.reg.BroadcastRoom(room.ID, toiletMsg{Type: "toilet", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), Status: ToiletBack, Seconds: secs}, nil)
	if c.Room != room.ID {
		s.broadcastPresence(room.ID)
	}
	s.sendStats(room.ID)
	return Applied
}

func (s *SessionManager) selfCall(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || !room.AllowSelfCall {
		return Rejected
	}
	u := s.users[c.User]
	if u == nil || classMismatch(u, room) || !rt.isMember(c.User) {
		return Rejected
	}

	delete(rt.Ready, c.User)
	u.StatsFor(room.Subject).AddCalls(s.today(), 1)
	rt.counters(c.User).Calls++
	s.persist(keyUsers, s.users)
	s.appendLog(room.ID, &domain.LogEntry{UserID: c.User, Action: domain.LogCalled, SelfCall: true})

	s.reg.SendToUser(c.User, selfCallNoticeMsg{Type: "selfCallNotice", RoomID: room.ID})
	s.reg.BroadcastRoom(room.ID, calledMsg{Type: "called", RoomID: room.ID, UserID: c.User, Name: u.DisplayName(), SelfCall: true}, nil)
	s.broadcastPresence(room.ID)
	s.sendStats(room.ID)
	return Applied
}

// ack is the teacher taking a raised hand: the whole ready set clears,
// only the target is counted as called.
func (s *SessionManager) ack(c *Client, cmd Command) Outcome {
	room, rt, ok := s.roomFor(c, cmd.RoomID)
	if !ok || cmd.TargetID == "" {
		return Rejected
	}
	u := s.users[cmd.TargetID]
	if u == nil || !rt.isMember(cmd.TargetID) {
		return Rejected
	}

	rt.Ready = make(map[domain.UserID]struct{})
	u.StatsFor(room.Subject).AddCalls(s.today(), 1)
	rt.counters(cmd.TargetID).Calls++
	s.persist(keyUsers, s.users)
	s.appendLog(room.ID, &domain.LogEntry{UserID: cmd.TargetID, Action: domain.LogCalled})

	s.reg.SendToUser(cmd.TargetID, calledMsg{Type: "called", RoomID: room.ID, UserID: cmd.TargetID, Name: u.DisplayName()})
	s.reg.BroadcastRoom(room.ID, resetMsg{Type: "resetAll", RoomID: room.ID}, nil)
	s.broadcastPresence(room.ID)
	s.sendStats(room.ID)
	return Applied
}

func (s *SessionManager) rate(c *Client, cmd Command) Outcome {
	room, _, ok := s.roomFor(c, cmd.RoomID)
	if !ok || cmd.TargetID == "" {
		return Rejected
	}
	bucket, valid := domain.RatingIndex(cmd.Rating)
	u := s.users[cmd.TargetID]
	if !valid || u == nil {
		return Rejected
	}
	u.StatsFor(room.Subject).AddRating(bucket, 1)
	s.persist(keyUsers, s.users)
	s.appendLog(room.ID, &domain.LogEntry{UserID: cmd.TargetID, Action: domain.LogRating, Rating: cmd.Rating})
	s.sendStats(room.ID)
	return Applied
}
