package core

import "github.com/Marc-We/Meldeliste/internal/domain"

// Kind tags one inbound command. The set is closed; unknown tags never
// reach Dispatch.
type Kind string

const (
	KindJoin              Kind = "join"
	KindLeave             Kind = "leave"
	KindReady             Kind = "ready"
	KindWithdraw          Kind = "withdraw"
	KindImportant         Kind = "important"
	KindImportantClear    Kind = "importantClear"
	KindImportantWithdraw Kind = "importantWithdraw"
	KindToilet            Kind = "toilet"
	KindToiletAllow       Kind = "toiletAllow"
	KindToiletBack        Kind = "toiletBack"
	KindSelfCall          Kind = "selfCall"
	KindAck               Kind = "ack"
	KindRate              Kind = "rate"
	KindQuestionSubmit    Kind = "questionSubmit"
	KindPollCreate        Kind = "pollCreate"
	KindPollVote          Kind = "pollVote"
	KindPollTemplateNew   Kind = "pollTemplateCreate"
	KindPollTemplateList  Kind = "pollTemplateList"
	KindPollTemplateUse   Kind = "pollTemplateActivate"
	KindThoughtStart      Kind = "thoughtStart"
	KindThoughtSubmit     Kind = "thoughtSubmit"
	KindThoughtEnd        Kind = "thoughtEnd"
	KindRoomCreate        Kind = "roomCreate"
	KindRoomClose         Kind = "roomClose"
	KindRoomList          Kind = "roomListRequest"
	KindToggleSelfCall    Kind = "toggleSelfCall"
	KindHomeworkSet       Kind = "homeworkSet"
	KindHomeworkList      Kind = "homeworkListRequest"
	KindHomeworkUpload    Kind = "homeworkUpload"
	KindLogDelete         Kind = "logDelete"
	KindCreateClass       Kind = "createClass"
	KindCreateSubject     Kind = "createSubject"
	KindAddTeaching       Kind = "addTeaching"
)

// Command is the decoded form of one inbound message. Fields not used
// by a kind stay zero.
type Command struct {
	Kind       Kind
	RoomID     domain.RoomID
	TargetID   domain.UserID
	Name       string
	Subject    string
	ClassName  string
	Text       string
	Question   string
	Options    []string
	Multiple   bool
	Rating     string
	Allow      bool
	TemplateID string
	EntryID    string
	FileName   string
	Data       []byte
}

const (
	student = 1 << iota
	teacher
	admin
	staff    = teacher | admin
	everyone = student | teacher | admin
)

// capabilities is checked once before dispatch; a kind missing here or
// a role without its bit is silently rejected.
var capabilities = map[Kind]int{
	KindJoin:              everyone,
	KindLeave:             everyone,
	KindReady:             student,
	KindWithdraw:          student,
	KindImportant:         student,
	KindImportantClear:    staff,
	KindImportantWithdraw: student,
	KindToilet:            student,
	KindToiletAllow:       staff,
	KindToiletBack:        student,
	KindSelfCall:          student,
	KindAck:               staff,
	KindRate:              staff,
	KindQuestionSubmit:    everyone,
	KindPollCreate:        staff,
	KindPollVote:          everyone,
	KindPollTemplateNew:   staff,
	KindPollTemplateList:  staff,
	KindPollTemplateUse:   staff,
	KindThoughtStart:      staff,
	KindThoughtSubmit:     everyone,
	KindThoughtEnd:        staff,
	KindRoomCreate:        staff,
	KindRoomClose:         staff,
	KindRoomList:          everyone,
	KindToggleSelfCall:    staff,
	KindHomeworkSet:       staff,
	KindHomeworkList:      everyone,
	KindHomeworkUpload:    everyone,
	KindLogDelete:         staff,
	KindCreateClass:       admin,
	KindCreateSubject:     admin,
	KindAddTeaching:       staff,
}

func roleBit(r domain.Role) int {
	switch r {
	case domain.RoleStudent:
		return student
	case domain.RoleTeacher:
		return teacher
	case domain.RoleAdmin:
		return admin
	}
	return 0
}

// Allowed reports whether the role may issue the command kind at all.
func Allowed(r domain.Role, k Kind) bool {
	return capabilities[k]&roleBit(r) != 0
}
