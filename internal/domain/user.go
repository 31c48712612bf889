// Package domain contains entity without logic, just meta-data
package domain

import "strings"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent || r == RoleAdmin
}

// Staff reports whether the role may act on other users (call, allow, rate).
func (r Role) Staff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

type UserID string

// Teaching is a (class, subject) assignment of a teacher.
type Teaching struct {
	ClassName string `json:"className"`
	Subject   string `json:"subject"`
}

type User struct {
	ID         UserID                  `json:"id"`
	Role       Role                    `json:"role"`
	FirstName  string                  `json:"firstName,omitempty"`
	LastName   string                  `json:"lastName"`
	Salutation string                  `json:"salutation,omitempty"`
	ClassName  string                  `json:"className,omitempty"`
	Password   string                  `json:"password"`
	Teaching   []Teaching              `json:"teaching,omitempty"`
	Stats      map[string]*StatsRecord `json:"stats,omitempty"`
}

// DisplayName is what other members of a room see. Teachers and admins
// are shown by salutation, students by their given name.
func (u *User) DisplayName() string {
	if u.Role.Staff() {
		return strings.TrimSpace(u.Salutation + " " + u.LastName)
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// StatsFor returns the per-subject record, creating it on first access.
func (u *User) StatsFor(subject string) *StatsRecord {
	if u.Stats == nil {
		u.Stats = make(map[string]*StatsRecord)
	}
	rec, ok := u.Stats[subject]
	if !ok {
		rec = NewStatsRecord()
		u.Stats[subject] = rec
	}
	return rec
}

// Teaches reports whether the teacher has an assignment for the pair.
func (u *User) Teaches(className, subject string) bool {
	for _, t := range u.Teaching {
		if t.ClassName == className && t.Subject == subject {
			return true
		}
	}
	return false
}
