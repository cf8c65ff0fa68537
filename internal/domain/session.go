package domain

import "strings"

// Team member roles recognised by the wallet screens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// Session is the authenticated team member on whose behalf requests are made.
// It is passed explicitly into the console and into request contexts on the server.
type Session struct {
	TeamMemberID string   `json:"team_member_id"`
	Name         string   `json:"name"`
	Roles        []string `json:"roles"`
}

// Authenticated reports whether the session identifies a team member.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.TeamMemberID) != ""
}

// HasAnyRole reports whether the session holds at least one of the required roles.
// Role names compare case-insensitively. An empty requirement list is never satisfied.
func HasAnyRole(s Session, required ...string) bool {
	for _, want := range required {
		for _, have := range s.Roles {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				return true
			}
		}
	}
	return false
}

// CanAdjustFunds reports whether the session may credit or debit a wallet directly.
func CanAdjustFunds(s Session) bool {
	return HasAnyRole(s, RoleAdmin, RoleManager)
}

// SessionInfo is the payload of the session endpoint.
type SessionInfo struct {
	CSRFToken  string  `json:"csrf_token"`
	TeamMember Session `json:"team_member"`
}
