package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaRef identifies an asset hosted by the media delegate.
type MediaRef struct {
	PublicID     string `json:"publicId"`
	ResourceType string `json:"resourceType"`
}

// PendingMediaDeletion records a release that failed and awaits reconciliation.
type PendingMediaDeletion struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	PublicID     string    `gorm:"uniqueIndex;not null" json:"publicId" bson:"publicId"`
	ResourceType string    `gorm:"size:8;not null" json:"resourceType" bson:"resourceType"`
	Attempts     int       `gorm:"not null" json:"attempts" bson:"attempts"`
	LastError    string    `gorm:"type:text" json:"lastError" bson:"lastError"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `gorm:"index" json:"updatedAt" bson:"updatedAt"`
}

// TableName pins the cleanup queue table name.
func (PendingMediaDeletion) TableName() string {
	return "media_cleanups"
}

// BeforeCreate assigns an id prior to insert.
func (p *PendingMediaDeletion) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// Ref returns the media reference this entry is tracking.
func (p *PendingMediaDeletion) Ref() MediaRef {
	return MediaRef{PublicID: p.PublicID, ResourceType: p.ResourceType}
}

// DashboardStats aggregates the admin dashboard counters.
type DashboardStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalPosts        int64 `json:"totalPosts"`
	TotalAdmins       int64 `json:"totalAdmins"`
	TotalRegularUsers int64 `json:"totalRegularUsers"`
}

// Dashboard is the admin overview payload.
type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	RecentUsers []User         `json:"recentUsers"`
	RecentPosts []Post         `json:"recentPosts"`
}
