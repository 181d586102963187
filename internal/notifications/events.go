// Package notifications delivers live post events to feed subscribers.
package notifications

import (
	"time"

	"devsnippet/internal/models"
)

// Post event types pushed on the feed.
const (
	EventPostCreated = "post.created"
	EventPostUpdated = "post.updated"
	EventPostDeleted = "post.deleted"
	EventPostLiked   = "post.liked"
)

// PostEvent is the payload of a single feed message.
type PostEvent struct {
	Type    string       `json:"type"`
	PostID  string       `json:"postId"`
	ActorID string       `json:"actorId"`
	Post    *models.Post `json:"post,omitempty"`
	At      time.Time    `json:"at"`
}

// NewPostEvent stamps an event for post.
func NewPostEvent(eventType string, post *models.Post, actorID string) PostEvent {
	ev := PostEvent{Type: eventType, ActorID: actorID, At: time.Now().UTC()}
	if post != nil {
		ev.PostID = post.ID
		if eventType != EventPostDeleted {
			ev.Post = post
		}
	}
	return ev
}
