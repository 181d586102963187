package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"devsnippet/internal/models"
	"devsnippet/internal/testutil"
	"devsnippet/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUser_ValidAndUnique(t *testing.T) {
	f, err := NewFactory(nil, Options{Seed: 7})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		u := f.BuildUser()
		require.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		require.NoError(t, validation.ValidateEmail(u.Email), u.Email)
		assert.False(t, seen[u.Username], "duplicate username %s", u.Username)
		seen[u.Username] = true
	}

	admin := f.BuildUser(func(u *models.User) { u.Role = models.RoleAdmin })
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestBuildPost_TimestampsAndMedia(t *testing.T) {
	f, err := NewFactory(nil, Options{Seed: 3, MaxDays: 30})
	require.NoError(t, err)
	author := &models.User{ID: "author-1"}

	for i := 0; i < 30; i++ {
		p := f.BuildPost(author)
		assert.Equal(t, "author-1", p.AuthorID)
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Content)
		assert.True(t, p.MediaType.Valid())
		if p.MediaType == models.MediaImage {
			assert.Contains(t, p.MediaURL, "https://picsum.photos/")
		} else {
			assert.Empty(t, p.MediaURL)
		}
		assert.LessOrEqual(t, len(p.Tags), 3)
		assert.WithinDuration(t, time.Now(), p.CreatedAt, 31*24*time.Hour)
	}
}

func TestRun_SeedsUsersPostsAndLikes(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewSQLiteStore(t)

	summary, err := Run(ctx, store, Options{NumUsers: 4, NumPosts: 6, MaxLikes: 3, Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Users)
	assert.Equal(t, 6, summary.Posts)

	users, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), users)

	posts, err := store.Posts.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 6)

	likes := 0
	for _, p := range posts {
		assert.NotNil(t, p.Author)
		assert.LessOrEqual(t, len(p.Likes), 3)
		likes += len(p.Likes)
	}
	assert.Equal(t, summary.Likes, likes)
}

func TestRun_RequiresUsers(t *testing.T) {
	_, err := Run(context.Background(), testutil.NewSQLiteStore(t), Options{NumPosts: 3})
	assert.Error(t, err)
}

const fixtureYAML = `
users:
  - username: alice
    email: alice@example.com
    password: secret1
    role: admin
    bio: Gopher
  - username: bob
    email: bob@example.com
    password: secret2
posts:
  - author: alice
    title: Hello
    content: First snippet
    tags: [go, go, " sql "]
    likes: [bob, alice]
  - author: bob
    title: Clip
    content: A video
    mediaUrl: https://cdn.example.com/v.mp4
    mediaType: video
    downloadable: false
`

func TestFixtures_LoadAndApply(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewSQLiteStore(t)
	path := filepath.Join(t.TempDir(), "fixtures.yml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	fx, err := LoadFixtures(path)
	require.NoError(t, err)
	summary, err := fx.Apply(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Summary{Users: 2, Posts: 2, Likes: 2}, *summary)

	alice, err := store.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, models.RoleAdmin, alice.Role)
	bob, err := store.Users.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.Equal(t, models.RoleUser, bob.Role)

	posts, err := store.Posts.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		switch p.Title {
		case "Hello":
			assert.Equal(t, []string{"go", "sql"}, p.Tags)
			assert.ElementsMatch(t, []string{alice.ID, bob.ID}, p.Likes)
			assert.True(t, p.IsDownloadable)
		case "Clip":
			assert.Equal(t, models.MediaVideo, p.MediaType)
			assert.False(t, p.IsDownloadable)
		}
	}

	// Users are reused on a second run.
	summary, err = fx.Apply(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Users)
	assert.Equal(t, 2, summary.Posts)
}

func TestParseFixtures_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad username":   "users: [{username: a, email: a@example.com, password: secret1}]",
		"bad role":       "users: [{username: alice, email: a@example.com, password: secret1, role: owner}]",
		"short password": "users: [{username: alice, email: a@example.com, password: abc}]",
		"unknown author": "posts: [{author: ghost, title: t, content: c}]",
		"missing title":  "users: [{username: alice, email: a@example.com, password: secret1}]\nposts: [{author: alice, content: c}]",
		"unknown liker":  "users: [{username: alice, email: a@example.com, password: secret1}]\nposts: [{author: alice, title: t, content: c, likes: [bob]}]",
		"bad media type": "users: [{username: alice, email: a@example.com, password: secret1}]\nposts: [{author: alice, title: t, content: c, mediaType: gif}]",
		"not yaml":       "users: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(raw))
			assert.Error(t, err)
		})
	}
}
