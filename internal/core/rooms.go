package core

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

func trimmed(s string) string { return strings.TrimSpace(s) }

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func homeworkKey(className, subject string) string {
	return className + "|" + subject
}

func (s *SessionManager) roomCreate(c *Client, cmd Command) Outcome {
	name, subject, className := trimmed(cmd.Name), trimmed(cmd.Subject), trimmed(cmd.ClassName)
	if name == "" || subject == "" || className == "" {
		return Rejected
	}
	room := &domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		Subject:   subject,
		ClassName: className,
		TeacherID: c.User,
		Active:    true,
		CreatedAt: s.now(),
	}
	s.rooms[room.ID] = room
	s.ensureRuntime(room.ID)
	s.persist(keyRooms, s.rooms)
	s.broadcastRoomList()
	return Applied
}

// roomClose marks the room inactive and rolls the pair's homework over
// from current to previous. The runtime and its session counters stay.
func (s *SessionManager) roomClose(c *Client, cmd Command) Outcome {
	room, ok := s.rooms[cmd.RoomID]
	if !ok || !room.Active {
		return Rejected
	}
	room.Active = false
	room.ClosedAt = s.now()
	s.homeworkFor(room.ClassName, room.Subject).Rollover()
	s.persist(keyRooms, s.rooms)
	s.persist(keyHomework, s.homework)

	s.reg.BroadcastRoom(room.ID, roomClosedMsg{Type: "roomClosed", RoomID: room.ID}, nil)
	s.broadcastRoomList()
	return Applied
}

func (s *SessionManager) toggleSelfCall(c *Client, cmd Command) Outcome {
	room, _, ok := s.roomFor(c, cmd.RoomID)
	if !ok {
		return Rejected
	}
	// Only the owning teacher or an admin may change room settings.
	if c.User != room.TeacherID && c.Role != domain.RoleAdmin {
		return Rejected
	}
	room.AllowSelfCall = cmd.Allow
	s.persist(keyRooms, s.rooms)
	s.reg.BroadcastRoom(room.ID, roomSettingsMsg{
		Type:          "roomSettings",
		RoomID:        room.ID,
		Name:          room.Name,
		Subject:       room.Subject,
		ClassName:     room.ClassName,
		AllowSelfCall: room.AllowSelfCall,
	}, nil)
	return Applied
}

func (s *SessionManager) sendRoomSettings(c *Client, room *domain.Room) {
	c.send(roomSettingsMsg{
		Type:          "roomSettings",
		RoomID:        room.ID,
		Name:          room.Name,
		Subject:       room.Subject,
		ClassName:     room.ClassName,
		AllowSelfCall: room.AllowSelfCall,
	})
}

// roomListFor builds the room list a single socket may see: staff see
// everything, students only active rooms of their own class.
func (s *SessionManager) roomListFor(c *Client) roomListMsg {
	msg := roomListMsg{Type: "roomList", Rooms: []roomListEntry{}}
	u := s.users[c.User]
	for _, room := range s.rooms {
		if !c.Role.Staff() {
			if !room.Active || u == nil || u.ClassName != room.ClassName {
				continue
			}
		}
		teacherName := ""
		if t := s.users[room.TeacherID]; t != nil {
			teacherName = t.DisplayName()
		}
		memberCount := 0
		if rt, ok := s.runtimes[room.ID]; ok {
			memberCount = len(rt.Members)
		}
		msg.Rooms = append(msg.Rooms, roomListEntry{
			ID:            room.ID,
			Name:          room.Name,
			Subject:       room.Subject,
			ClassName:     room.ClassName,
			TeacherName:   teacherName,
			Active:        room.Active,
			AllowSelfCall: room.AllowSelfCall,
			MemberCount:   memberCount,
		})
	}
	sort.Slice(msg.Rooms, func(i, j int) bool { return msg.Rooms[i].Name < msg.Rooms[j].Name })
	return msg
}

func (s *SessionManager) sendRoomList(c *Client) {
	c.send(s.roomListFor(c))
}

func (s *SessionManager) broadcastRoomList() {
	s.reg.BroadcastEach(func(c *Client) any { return s.roomListFor(c) })
}

func (s *SessionManager) homeworkFor(className, subject string) *domain.HomeworkEntry {
	key := homeworkKey(className, subject)
	hw, ok := s.homework[key]
	if !ok {
		hw = &domain.HomeworkEntry{ClassName: className, Subject: subject}
		s.homework[key] = hw
	}
	return hw
}

func (s *SessionManager) homeworkSet(c *Client, cmd Command) Outcome {
	className, subject := trimmed(cmd.ClassName), trimmed(cmd.Subject)
	if className == "" || subject == "" {
		if room, _, ok := s.roomFor(c, cmd.RoomID); ok {
			className, subject = room.ClassName, room.Subject
		}
	}
	text := trimmed(cmd.Text)
	if className == "" || subject == "" || text == "" {
		return Rejected
	}
	hw := s.homeworkFor(className, subject)
	hw.Current = domain.HomeworkText{Text: text, SetAt: s.now()}
	s.persist(keyHomework, s.homework)

	msg := homeworkMsg{Type: "homework", ClassName: className, Subject: subject, Current: hw.Current, Previous: hw.Previous}
	c.send(msg)
	s.reg.BroadcastEach(func(cl *Client) any {
		if cl == c {
			return nil
		}
		if u := s.users[cl.User]; u != nil && u.ClassName == className {
			return msg
		}
		return nil
	})
	return Applied
}

func (s *SessionManager) homeworkList(c *Client) Outcome {
	u := s.users[c.User]
	if u == nil {
		return Rejected
	}
	msg := homeworkListMsg{Type: "homeworkList", Entries: []*domain.HomeworkEntry{}}
	for _, hw := range s.homework {
		switch {
		case c.Role == domain.RoleAdmin:
		case c.Role == domain.RoleTeacher:
			if !u.Teaches(hw.ClassName, hw.Subject) {
				continue
			}
		default:
			if u.ClassName != hw.ClassName {
				continue
			}
		}
		msg.Entries = append(msg.Entries, hw)
	}
	sort.Slice(msg.Entries, func(i, j int) bool {
		if msg.Entries[i].ClassName != msg.Entries[j].ClassName {
			return msg.Entries[i].ClassName < msg.Entries[j].ClassName
		}
		return msg.Entries[i].Subject < msg.Entries[j].Subject
	})
	c.send(msg)
	return Applied
}

// homeworkUpload hands the bytes to the blob store and only records the
// returned reference.
func (s *SessionManager) homeworkUpload(c *Client, cmd Command) Outcome {
	fileName := trimmed(cmd.FileName)
	if fileName == "" || len(cmd.Data) == 0 {
		return Rejected
	}
	className, subject := trimmed(cmd.ClassName), trimmed(cmd.Subject)
	if className == "" || subject == "" {
		if room, _, ok := s.roomFor(c, cmd.RoomID); ok {
			className, subject = room.ClassName, room.Subject
		}
	}
	ref, err := s.blobs.Put(fileName, cmd.Data)
	if err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("file", fileName).Msg("blob store put failed")
		return Rejected
	}
	s.uploads = append(s.uploads, domain.Upload{
		ID:         uuid.NewString(),
		UserID:     c.User,
		ClassName:  className,
		Subject:    subject,
		FileName:   fileName,
		Ref:        ref,
		UploadedAt: s.now(),
	})
	s.persist(keyUploads, s.uploads)
	c.send(homeworkUploadAckMsg{Type: "homeworkUploadAck", FileName: fileName, Ref: ref})
	return Applied
}

func (s *SessionManager) createClass(cmd Command) Outcome {
	name := trimmed(cmd.Name)
	if name == "" {
		return Rejected
	}
	s.classes[name] = struct{}{}
	s.persistCatalogs()
	s.broadcastCatalogs()
	return Applied
}

func (s *SessionManager) createSubject(cmd Command) Outcome {
	name := trimmed(cmd.Name)
	if name == "" {
		return Rejected
	}
	s.subjects[name] = struct{}{}
	s.persistCatalogs()
	s.broadcastCatalogs()
	return Applied
}

func (s *SessionManager) addTeaching(c *Client, cmd Command) Outcome {
	className, subject := trimmed(cmd.ClassName), trimmed(cmd.Subject)
	u := s.users[c.User]
	if u == nil || className == "" || subject == "" || u.Teaches(className, subject) {
		return Rejected
	}
	u.Teaching = append(u.Teaching, domain.Teaching{ClassName: className, Subject: subject})
	s.persist(keyUsers, s.users)
	s.sendProfile(u)
	return Applied
}
