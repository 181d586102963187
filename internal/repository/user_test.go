package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"devsnippet/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByEmail_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success normalizes email", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username", "email"}).AddRow("u-1", "alice", "alice@example.com")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
			WithArgs("alice@example.com", 1).
			WillReturnRows(rows)

		user, err := repo.GetByEmail(ctx, "  Alice@Example.COM ")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
			WithArgs("ghost@example.com", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByEmail(ctx, "ghost@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
			WithArgs("x@example.com", 1).
			WillReturnError(errors.New("connection timeout"))

		user, err := repo.GetByEmail(ctx, "x@example.com")
		assert.Nil(t, user)
		assert.True(t, models.IsCode(err, models.CodeInternal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "a@example.com", Password: "h"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(errors.New("disk full")))
	assert.False(t, isUniqueViolation(nil))
}

func TestUserRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := createUser(t, repo, "alice")
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, models.RoleUser, alice.Role)

	t.Run("duplicate username conflicts", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "h"})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("duplicate email conflicts case-insensitively", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice2", Email: "ALICE@example.com", Password: "h"})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, alice.ID, byName.ID)

		missing, err := repo.GetByUsername(ctx, "nobody")
		assert.NoError(t, err)
		assert.Nil(t, missing)

		_, err = repo.GetByID(ctx, "does-not-exist")
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("update keeps password hash", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		got.Bio = "hello"
		got.Password = ""
		require.NoError(t, repo.Update(ctx, got, ColBio))

		stored, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "hello", stored.Bio)
		assert.Equal(t, "$2a$10$hash", stored.Password)
	})

	t.Run("update to taken username conflicts", func(t *testing.T) {
		bob := createUser(t, repo, "bob")
		bob.Username = "alice"
		err := repo.Update(ctx, bob, ColUsername)
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("counts and listing", func(t *testing.T) {
		admin := createUser(t, repo, "root")
		admin.Role = models.RoleAdmin
		require.NoError(t, repo.Update(ctx, admin, ColRole))

		total, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)

		admins, err := repo.CountByRole(ctx, models.RoleAdmin)
		require.NoError(t, err)
		assert.EqualValues(t, 1, admins)

		listed, err := repo.ListByRole(ctx, models.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "root", listed[0].Username)

		page, err := repo.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})
}

func TestUserRepository_ListNewestFirst(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		u := &models.User{Username: name, Email: name + "@example.com", Password: "h", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, u))
	}

	users, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "third", users[0].Username)
	assert.Equal(t, "first", users[2].Username)

	rest, err := repo.List(ctx, 10, 1)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestUserRepository_DeleteWithContent(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	withMedia := &models.Post{Title: "clip", Content: "c", AuthorID: alice.ID, MediaType: models.MediaVideo, MediaPublicID: "vid-1", MediaURL: "https://cdn/vid-1"}
	require.NoError(t, posts.Create(ctx, withMedia))
	plain := createPost(t, posts, alice, "plain")
	bobs := createPost(t, posts, bob, "bob's post")

	// bob likes alice's post, alice likes bob's post
	require.NoError(t, posts.AddLike(ctx, plain.ID, bob.ID))
	require.NoError(t, posts.AddLike(ctx, bobs.ID, alice.ID))

	alice.ProfilePic, alice.ProfilePicID = "https://cdn/avatar", "avatar-1"
	require.NoError(t, users.Update(ctx, alice, ColProfilePic, ColProfilePicID))

	deleted, err := users.DeleteWithContent(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{withMedia.ID, plain.ID}, deleted.PostIDs)
	assert.ElementsMatch(t, []models.MediaRef{
		{PublicID: "vid-1", ResourceType: "video"},
		{PublicID: "avatar-1", ResourceType: "image"},
	}, deleted.Media)

	_, err = users.GetByID(ctx, alice.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	remaining, err := posts.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, bobs.ID, remaining[0].ID)
	assert.Empty(t, remaining[0].Likes)

	var likeRows int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likeRows).Error)
	assert.Zero(t, likeRows)

	_, err = users.DeleteWithContent(ctx, alice.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
