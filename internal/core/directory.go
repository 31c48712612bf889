package core

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

// Auth error reasons, the only errors ever surfaced to a client.
const (
	AuthMissingFields = "missing_fields"
	AuthNotFound      = "not_found"
	AuthWrongPassword = "wrong_password"
	AuthAlreadyExists = "already_exists"
)

// ProfileInit is the one unauthenticated message.
type ProfileInit struct {
	Mode       string
	Role       string
	FirstName  string
	LastName   string
	Salutation string
	ClassName  string
	Password   string
	UserID     string
}

// InitProfile resolves or creates the user for a fresh socket. On
// success the socket is attached and receives profile, catalogs and the
// room list; on failure only an authError goes back.
func (s *SessionManager) InitProfile(c *Client, p ProfileInit) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, reason := s.resolveOrCreateUser(p)
	if reason != "" {
		c.send(authErrorMsg{Type: "authError", Reason: reason})
		return Rejected
	}

	c.User = u.ID
	c.Role = u.Role
	s.reg.Attach(c)
	log.Info().Str("module", "core.directory").Str("user", string(u.ID)).Str("role", string(u.Role)).Msg("profile initialized")

	// Rooms already holding the user see the online change.
	for rid, rt := range s.runtimes {
		if rt.isMember(u.ID) {
			s.broadcastPresence(rid)
		}
	}

	c.send(profileMsg{
		Type:      "profile",
		UserID:    u.ID,
		Role:      u.Role,
		Name:      u.DisplayName(),
		ClassName: u.ClassName,
		Teaching:  u.Teaching,
	})
	c.send(s.catalogsView())
	s.sendRoomList(c)
	return Applied
}

func (s *SessionManager) resolveOrCreateUser(p ProfileInit) (*domain.User, string) {
	role := domain.Role(p.Role)
	if !role.Valid() || p.LastName == "" || p.Password == "" {
		return nil, AuthMissingFields
	}
	if role == domain.RoleStudent && (p.FirstName == "" || p.ClassName == "") {
		return nil, AuthMissingFields
	}

	if p.Mode == "register" {
		if s.findUser(role, p.FirstName, p.LastName, p.ClassName) != nil {
			return nil, AuthAlreadyExists
		}
		u := &domain.User{
			ID:         domain.UserID(uuid.NewString()),
			Role:       role,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Salutation: p.Salutation,
			ClassName:  p.ClassName,
			Password:   p.Password,
		}
		s.users[u.ID] = u
		s.persist(keyUsers, s.users)
		return u, ""
	}

	var u *domain.User
	if p.UserID != "" {
		u = s.users[domain.UserID(p.UserID)]
	} else {
		u = s.findUser(role, p.FirstName, p.LastName, p.ClassName)
	}
	if u == nil {
		return nil, AuthNotFound
	}
	if u.Password != p.Password {
		return nil, AuthWrongPassword
	}
	return u, ""
}

func (s *SessionManager) findUser(role domain.Role, firstName, lastName, className string) *domain.User {
	for _, u := range s.users {
		if u.Role == role && u.FirstName == firstName && u.LastName == lastName && u.ClassName == className {
			return u
		}
	}
	return nil
}
