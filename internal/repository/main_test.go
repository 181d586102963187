package repository

import (
	"context"
	"testing"

	"devsnippet/internal/database"
	"devsnippet/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB returns an isolated in-memory store with the schema applied.
func newSQLiteDB(t *testing.T) *gorm.DB {
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
	return db
}

func createUser(t *testing.T, repo UserRepository, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func createPost(t *testing.T, repo PostRepository, author *models.User, title string) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:          title,
		Content:        "content of " + title,
		AuthorID:       author.ID,
		IsDownloadable: true,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}
