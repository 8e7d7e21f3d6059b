package domain

import "time"

// Identity is the caller as established by the external auth layer. The core
// trusts it and never authenticates.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Validate rejects identities missing the fields every operation scopes by.
func (id Identity) Validate() error {
	if id.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if id.OrganizationID == "" {
		return &ValidationError{Field: "organization_id", Reason: "is required"}
	}
	if id.Role != "" && !ValidRoles[string(id.Role)] {
		return &ValidationError{Field: "role", Reason: "unknown role " + string(id.Role)}
	}
	return nil
}

// EffectiveRole defaults an unset role to employee.
func (id Identity) EffectiveRole() Role {
	if id.Role == "" {
		return RoleEmployee
	}
	return id.Role
}

// User is the last-seen identity record the rules engine resolves roles from.
type User struct {
	ID             string
	OrganizationID string
	Role           Role
	LastSeenAt     time.Time
}
