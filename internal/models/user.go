package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the single authorization role carried by a user.
type Role string

// Known roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account. The password hash never leaves the process.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Username     string    `gorm:"uniqueIndex;size:30;not null" json:"username" bson:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Password     string    `gorm:"not null" json:"-" bson:"password"`
	Role         Role      `gorm:"size:10;not null;index" json:"role" bson:"role"`
	Bio          string    `gorm:"type:text" json:"bio" bson:"bio"`
	ProfilePic   string    `json:"profilePic" bson:"profilePic"`
	ProfilePicID string    `json:"profilePicId" bson:"profilePicId"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate assigns an id and normalizes fields prior to insert.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	u.Prepare()
	return nil
}

// Prepare fills defaults shared by every store implementation.
func (u *User) Prepare() {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Email = NormalizeEmail(u.Email)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary returns the author view embedded in posts.
func (u *User) Summary() *AuthorSummary {
	return &AuthorSummary{
		ID:         u.ID,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
		Bio:        u.Bio,
	}
}

// PublicProfile strips fields that are not shown to anonymous visitors.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// PublicProfile is returned by the anonymous profile lookup.
type PublicProfile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
	PostsCount int64     `json:"postsCount"`
}

// UserDetail is a user with a computed post count.
type UserDetail struct {
	User
	PostsCount int64 `json:"postsCount"`
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}
