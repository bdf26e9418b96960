package auth

import "strings"

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// SystemActor performs time-triggered transitions.
var SystemActor = Actor{ID: "SYSTEM", DisplayName: "System", Role: "SYSTEM"}

// Name returns the label recorded against lifecycle steps and audit rows.
func (a Actor) Name() string {
	switch {
	case a.DisplayName != "":
		return a.DisplayName
	case a.Username != "":
		return a.Username
	case a.ID != "":
		return a.ID
	}
	return "System"
}

// RoleOrDefault returns the actor's role, or "user" when none is set.
func (a Actor) RoleOrDefault() string {
	if a.Role == "" {
		return "user"
	}
	return a.Role
}

// HasPermission reports whether the actor carries the given permission.
func (a Actor) HasPermission(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasRole compares roles case-insensitively.
func (a Actor) HasRole(role string) bool {
	return role != "" && strings.EqualFold(a.Role, role)
}
