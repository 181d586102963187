// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaType describes the kind of media attached to a post.
type MediaType string

// Supported media types.
const (
	MediaNone  MediaType = "none"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether m is a known media type.
func (m MediaType) Valid() bool {
	return m == MediaNone || m == MediaImage || m == MediaVideo
}

// ResourceType is the hint handed to the media delegate on deletion.
func (m MediaType) ResourceType() string {
	if m == MediaVideo {
		return string(MediaVideo)
	}
	return string(MediaImage)
}

// AuthorSummary is the author view embedded in every post response.
// Post listings are public, so it carries no contact details.
type AuthorSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
	Bio        string `json:"bio"`
}

// Post represents a content item owned by exactly one user.
type Post struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Title          string         `gorm:"not null" json:"title" bson:"title"`
	Content        string         `gorm:"type:text;not null" json:"content" bson:"content"`
	AuthorID       string         `gorm:"size:36;not null;index" json:"authorId" bson:"author"`
	Author         *AuthorSummary `gorm:"-" json:"author" bson:"-"`
	MediaURL       string         `json:"mediaUrl" bson:"mediaUrl"`
	MediaType      MediaType      `gorm:"size:8;not null" json:"mediaType" bson:"mediaType"`
	MediaPublicID  string         `json:"mediaPublicId" bson:"mediaPublicId"`
	IsDownloadable bool           `gorm:"not null" json:"isDownloadable" bson:"isDownloadable"`
	Tags           []string       `gorm:"serializer:json;type:text" json:"tags" bson:"tags"`
	Likes          []string       `gorm:"-" json:"likes" bson:"likes"`
	CreatedAt      time.Time      `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate assigns an id and defaults prior to insert.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	p.Prepare()
	return nil
}

// Prepare fills defaults shared by every store implementation.
func (p *Post) Prepare() {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.MediaType == "" {
		p.MediaType = MediaNone
	}
	p.Normalize()
}

// Normalize guarantees slices serialize as [] rather than null.
func (p *Post) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
}

// HasMedia reports whether a delegate-hosted asset is attached.
func (p *Post) HasMedia() bool {
	return p.MediaPublicID != ""
}

// MediaRef returns the reference used to release the attached asset.
func (p *Post) MediaRef() MediaRef {
	return MediaRef{PublicID: p.MediaPublicID, ResourceType: p.MediaType.ResourceType()}
}

// LikedBy reports whether userID is in the likes set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Like is a single membership entry of a post's likes set.
// The composite primary key makes (post, user) unique.
type Like struct {
	PostID    string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"index"`
}
