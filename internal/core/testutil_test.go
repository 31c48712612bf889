package core

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

type fakeSender struct {
	frames []Frame
}

func (f *fakeSender) TrySend(fr Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}

// framesOfType decodes every captured frame with the given type tag.
func (f *fakeSender) framesOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %s: %v", fr, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) lastOfType(t *testing.T, typ string) map[string]any {
	t.Helper()
	ms := f.framesOfType(t, typ)
	if len(ms) == 0 {
		return nil
	}
	return ms[len(ms)-1]
}

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Save(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memStore) Load(key string, v any) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

type memBlobs struct{}

func (memBlobs) Put(name string, _ []byte) (string, error) {
	return "blobs/" + name, nil
}

func newTestManager() *SessionManager {
	return NewSessionManager(NewRegistry(), newMemStore(), memBlobs{})
}

var userSeq int

func addUser(s *SessionManager, role domain.Role, lastName, className string) *domain.User {
	userSeq++
	u := &domain.User{
		ID:        domain.UserID(fmt.Sprintf("u%d", userSeq)),
		Role:      role,
		FirstName: "Test",
		LastName:  lastName,
		ClassName: className,
		Password:  "pw",
	}
	if role.Staff() {
		u.ClassName = ""
		u.Salutation = "Hr."
	}
	s.users[u.ID] = u
	return u
}

// connect attaches an authenticated socket for the user.
func connect(s *SessionManager, u *domain.User) (*Client, *fakeSender) {
	userSeq++
	sender := &fakeSender{}
	c := NewClient(fmt.Sprintf("conn%d", userSeq), sender)
	c.User = u.ID
	c.Role = u.Role
	s.reg.Attach(c)
	return c, sender
}

// makeRoom creates an active room through the command path and returns
// it together with the owning teacher's client.
func makeRoom(t *testing.T, s *SessionManager, subject, className string) (*domain.Room, *Client, *fakeSender) {
	t.Helper()
	teacher := addUser(s, domain.RoleTeacher, "Weber", "")
	tc, tsend := connect(s, teacher)
	if out := s.Dispatch(tc, Command{Kind: KindRoomCreate, Name: subject + " " + className, Subject: subject, ClassName: className}); out != Applied {
		t.Fatalf("roomCreate rejected")
	}
	for _, room := range s.rooms {
		if room.Subject == subject && room.ClassName == className {
			if s.Dispatch(tc, Command{Kind: KindJoin, RoomID: room.ID}) != Applied {
				t.Fatalf("teacher join rejected")
			}
			return room, tc, tsend
		}
	}
	t.Fatalf("room not created")
	return nil, nil, nil
}

func joinStudent(t *testing.T, s *SessionManager, room *domain.Room, lastName string) (*domain.User, *Client, *fakeSender) {
	t.Helper()
	u := addUser(s, domain.RoleStudent, lastName, room.ClassName)
	c, send := connect(s, u)
	if s.Dispatch(c, Command{Kind: KindJoin, RoomID: room.ID}) != Applied {
		t.Fatalf("join rejected for %s", lastName)
	}
	return u, c, send
}

func fixedClock(s *SessionManager, at time.Time) func(d time.Duration) {
	now := at
	s.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}
