// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"devsnippet/internal/auth"
	"devsnippet/internal/database"
	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the plain-text password of every user created by CreateUser.
const TestPassword = "secret1"

var (
	hashOnce sync.Once
	hashed   string
)

// NewSQLiteStore returns repositories backed by an isolated in-memory database.
func NewSQLiteStore(t *testing.T) *repository.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return repository.NewGormStore(db)
}

// CreateUser stores a user with TestPassword and the given role.
func CreateUser(t *testing.T, users repository.UserRepository, username string, role models.Role) *models.User {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		hashed, err = auth.HashPassword(TestPassword)
		require.NoError(t, err)
	})

	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hashed,
		Role:     role,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

// CreatePost stores a post by author, optionally carrying a media public id.
func CreatePost(t *testing.T, posts repository.PostRepository, author *models.User, title, mediaPublicID string) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:          title,
		Content:        "content of " + title,
		AuthorID:       author.ID,
		IsDownloadable: true,
	}
	if mediaPublicID != "" {
		p.MediaPublicID = mediaPublicID
		p.MediaURL = "https://cdn.example.com/" + mediaPublicID
		p.MediaType = models.MediaImage
	}
	require.NoError(t, posts.Create(context.Background(), p))
	return p
}

// RecordingPublisher captures post events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []notifications.PostEvent
}

func (p *RecordingPublisher) PublishPostEvent(_ context.Context, ev notifications.PostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Types returns the event types in publish order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// RecordingReleaser captures media releases synchronously.
type RecordingReleaser struct {
	mu   sync.Mutex
	refs []models.MediaRef
}

func (r *RecordingReleaser) Release(_ context.Context, ref models.MediaRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, ref)
}

func (r *RecordingReleaser) ReleaseAll(ctx context.Context, refs []models.MediaRef) {
	for _, ref := range refs {
		r.Release(ctx, ref)
	}
}

// PublicIDs returns the released public ids in order.
func (r *RecordingReleaser) PublicIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.refs))
	for _, ref := range r.refs {
		out = append(out, ref.PublicID)
	}
	return out
}

// Refs returns a copy of the released refs.
func (r *RecordingReleaser) Refs() []models.MediaRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MediaRef(nil), r.refs...)
}
