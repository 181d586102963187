// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"devsnippet/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate reads the stored row, bypassing the cache. Mutations
	// start from it so a stale cached copy is never written back.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Update writes only the named profile columns of user; updated_at is always set.
	Update(ctx context.Context, user *models.User, columns ...string) error
	DeleteWithContent(ctx context.Context, id string) (*DeletedAccount, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
}

// PostRepository defines persistence operations for posts and their likes.
// Every post it returns has Author and Likes populated.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
	ToggleLike(ctx context.Context, postID, userID string) (*models.Post, bool, error)
	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
	FindOrphans(ctx context.Context) ([]models.Post, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	// CountMediaReferences counts the posts and avatars that point at publicID.
	CountMediaReferences(ctx context.Context, publicID string) (int64, error)
}

// MediaCleanupRepository persists media releases that still need to happen.
type MediaCleanupRepository interface {
	Enqueue(ctx context.Context, ref models.MediaRef, cause string) error
	ListDue(ctx context.Context, limit int) ([]models.PendingMediaDeletion, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string) error
}

// DeletedAccount describes what an account deletion removed.
type DeletedAccount struct {
	User    models.User
	PostIDs []string
	Media   []models.MediaRef
}

// Store bundles the repositories of one backend.
type Store struct {
	Users    UserRepository
	Posts    PostRepository
	Cleanups MediaCleanupRepository
	Ping     func(ctx context.Context) error
}

const maxToggleAttempts = 5

var errToggleContention = errors.New("like toggle did not settle")

// isUniqueViolation recognizes duplicate-key failures from every supported backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}

// internal wraps unexpected failures while letting AppErrors through.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

func mediaRefsOf(posts []models.Post) []models.MediaRef {
	refs := make([]models.MediaRef, 0, len(posts))
	for i := range posts {
		if posts[i].HasMedia() {
			refs = append(refs, posts[i].MediaRef())
		}
	}
	return refs
}

func postIDsOf(posts []models.Post) []string {
	ids := make([]string, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
	}
	return ids
}

// attachAuthors fills Author on each post from the loaded users.
func attachAuthors(posts []*models.Post, users []models.User) {
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, p := range posts {
		if u, ok := byID[p.AuthorID]; ok {
			p.Author = u.Summary()
		} else {
			p.Author = nil
		}
		p.Normalize()
	}
}

func authorIDsOf(posts []*models.Post) []string {
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}
	return ids
}
