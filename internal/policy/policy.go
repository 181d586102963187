// Package policy centralizes role and ownership checks.
package policy

import (
	"devsnippet/internal/models"
)

// Identity is the resolved acting user attached to a request.
type Identity struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// IdentityOf builds an identity from a stored user.
func IdentityOf(u *models.User) Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Authenticated reports whether the identity refers to a user.
func (i Identity) Authenticated() bool {
	return i.ID != ""
}

// CanModerate reports whether the identity may manage users and any post.
func CanModerate(i Identity) bool {
	return i.Authenticated() && i.Role == models.RoleAdmin
}

// CanEditPost permits the author or a moderator.
func CanEditPost(i Identity, p *models.Post) bool {
	if !i.Authenticated() || p == nil {
		return false
	}
	return p.AuthorID == i.ID || CanModerate(i)
}

// CanDeletePost follows the same rule as editing.
func CanDeletePost(i Identity, p *models.Post) bool {
	return CanEditPost(i, p)
}

// RequireModerator returns Forbidden unless the identity is an admin.
func RequireModerator(i Identity) error {
	if !CanModerate(i) {
		return models.NewForbiddenError("Access denied. Admin only.")
	}
	return nil
}

// RequirePostEditor returns Forbidden unless the identity may edit p.
func RequirePostEditor(i Identity, p *models.Post) error {
	if !CanEditPost(i, p) {
		return models.NewForbiddenError("Not authorized")
	}
	return nil
}

// CheckRoleChange blocks an admin from demoting their own account.
func CheckRoleChange(actor Identity, targetID string, newRole models.Role) error {
	if actor.ID == targetID && newRole == models.RoleUser {
		return models.NewBadRequestError("Cannot demote yourself from admin")
	}
	return nil
}

// CheckUserDeletion blocks an admin from deleting their own account.
func CheckUserDeletion(actor Identity, targetID string) error {
	if actor.ID == targetID {
		return models.NewBadRequestError("Cannot delete yourself")
	}
	return nil
}
