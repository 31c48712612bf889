package core

import (
	"time"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// Outbound messages. One struct per push type; Type carries the wire
// tag so clients can dispatch without a correlation id.

type profileMsg struct {
	Type      string            `json:"type"`
	UserID    domain.UserID     `json:"userId"`
	Role      domain.Role       `json:"role"`
	Name      string            `json:"name"`
	ClassName string            `json:"className,omitempty"`
	Teaching  []domain.Teaching `json:"teaching,omitempty"`
}

type authErrorMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type catalogsMsg struct {
	Type     string   `json:"type"`
	Classes  []string `json:"classes"`
	Subjects []string `json:"subjects"`
}

type roomListEntry struct {
	ID            domain.RoomID `json:"id"`
	Name          string        `json:"name"`
	Subject       string        `json:"subject"`
	ClassName     string        `json:"className"`
	TeacherName   string        `json:"teacherName"`
	Active        bool          `json:"active"`
	AllowSelfCall bool          `json:"allowSelfCall"`
	MemberCount   int           `json:"memberCount"`
}

type roomListMsg struct {
	Type  string          `json:"type"`
	Rooms []roomListEntry `json:"rooms"`
}

type roomSettingsMsg struct {
	Type          string        `json:"type"`
	RoomID        domain.RoomID `json:"roomId"`
	Name          string        `json:"name"`
	Subject       string        `json:"subject"`
	ClassName     string        `json:"className"`
	AllowSelfCall bool          `json:"allowSelfCall"`
}

type roomClosedMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type PresenceEntry struct {
	UserID    domain.UserID `json:"userId"`
	Name      string        `json:"name"`
	Role      domain.Role   `json:"role"`
	Ready     bool          `json:"ready"`
	Online    bool          `json:"online"`
	Important bool          `json:"important"`
}

type presenceMsg struct {
	Type    string          `json:"type"`
	RoomID  domain.RoomID   `json:"roomId"`
	Members []PresenceEntry `json:"members"`
}

type RosterEntry struct {
	UserID domain.UserID `json:"userId"`
	Name   string        `json:"name"`
	InRoom bool          `json:"inRoom"`
}

type rosterMsg struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"roomId"`
	ClassName string        `json:"className"`
	Entries   []RosterEntry `json:"entries"`
}

type readyMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Name   string        `json:"name"`
}

type resetMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId,omitempty"`
}

type importantMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Name   string        `json:"name"`
	Status string        `json:"status"`
}

type toiletMsg struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	UserID  domain.UserID `json:"userId"`
	Name    string        `json:"name"`
	Status  ToiletStatus  `json:"status"`
	Seconds int           `json:"seconds,omitempty"`
}

type calledMsg struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	Name     string        `json:"name"`
	SelfCall bool          `json:"selfCall,omitempty"`
}

type questionMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Entry  question      `json:"entry"`
}

type questionListMsg struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	Entries []question    `json:"entries"`
}

type pollMsg struct {
	Type       string              `json:"type"`
	RoomID     domain.RoomID       `json:"roomId"`
	ID         string              `json:"id"`
	Question   string              `json:"question"`
	Options    []domain.PollOption `json:"options"`
	Multiple   bool                `json:"multiple"`
	TotalVotes int                 `json:"totalVotes"`
}

type pollTemplatesMsg struct {
	Type      string                 `json:"type"`
	Templates []*domain.PollTemplate `json:"templates"`
}

type thoughtStateMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Active bool          `json:"active"`
}

type ThoughtResult struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type thoughtResultsMsg struct {
	Type    string          `json:"type"`
	RoomID  domain.RoomID   `json:"roomId"`
	Results []ThoughtResult `json:"results"`
}

type LogView struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	UserID    domain.UserID    `json:"userId"`
	Name      string           `json:"name"`
	Action    domain.LogAction `json:"action"`
	Rating    string           `json:"rating,omitempty"`
	SelfCall  bool             `json:"selfCall,omitempty"`
}

type logMsg struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	Entries []LogView     `json:"entries"`
}

type SessionStatsView struct {
	UserID        domain.UserID `json:"userId"`
	Name          string        `json:"name"`
	Signals       int           `json:"signals"`
	Calls         int           `json:"calls"`
	ToiletSeconds int           `json:"toiletSeconds"`
}

type TotalStatsView struct {
	UserID        domain.UserID              `json:"userId"`
	Name          string                     `json:"name"`
	Signals       int                        `json:"signals"`
	Calls         int                        `json:"calls"`
	Ratings       [5]int                     `json:"ratings"`
	ToiletSeconds int                        `json:"toiletSeconds"`
	Daily         map[string]domain.DayStats `json:"daily"`
}

type statsMsg struct {
	Type    string             `json:"type"`
	RoomID  domain.RoomID      `json:"roomId"`
	Session []SessionStatsView `json:"session"`
	Totals  []TotalStatsView   `json:"totals"`
}

type myStatsMsg struct {
	Type    string           `json:"type"`
	RoomID  domain.RoomID    `json:"roomId"`
	Session SessionStatsView `json:"session"`
	Total   TotalStatsView   `json:"total"`
}

type homeworkMsg struct {
	Type      string              `json:"type"`
	ClassName string              `json:"className"`
	Subject   string              `json:"subject"`
	Current   domain.HomeworkText `json:"current"`
	Previous  domain.HomeworkText `json:"previous"`
}

type homeworkListMsg struct {
	Type    string                  `json:"type"`
	Entries []*domain.HomeworkEntry `json:"entries"`
}

type homeworkUploadAckMsg struct {
	Type     string `json:"type"`
	FileName string `json:"fileName"`
	Ref      string `json:"ref"`
}

type selfCallNoticeMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type toiletAllowedMsg struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}
