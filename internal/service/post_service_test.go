package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/repository"
	"devsnippet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postFixture struct {
	store    *repository.Store
	svc      *PostService
	releaser *testutil.RecordingReleaser
	events   *testutil.RecordingPublisher
	alice    *models.User
	bob      *models.User
	admin    *models.User
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	store := testutil.NewSQLiteStore(t)
	f := &postFixture{
		store:    store,
		releaser: &testutil.RecordingReleaser{},
		events:   &testutil.RecordingPublisher{},
	}
	f.svc = NewPostService(store.Posts, f.releaser, f.events)
	f.alice = testutil.CreateUser(t, store.Users, "alice", models.RoleUser)
	f.bob = testutil.CreateUser(t, store.Users, "bob", models.RoleUser)
	f.admin = testutil.CreateUser(t, store.Users, "root", models.RoleAdmin)
	return f
}

func TestPostService_CreateDefaults(t *testing.T) {
	f := newPostFixture(t)

	post, err := f.svc.Create(context.Background(), identity(f.alice), CreatePostInput{Title: "Hello", Content: "World"})
	require.NoError(t, err)
	assert.Equal(t, models.MediaNone, post.MediaType)
	assert.True(t, post.IsDownloadable)
	assert.Equal(t, []string{}, post.Tags)
	assert.Equal(t, []string{}, post.Likes)
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, []string{notifications.EventPostCreated}, f.events.Types())
}

func TestPostService_CreateValidation(t *testing.T) {
	f := newPostFixture(t)
	no := false

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"missing title", CreatePostInput{Content: "c"}},
		{"missing content", CreatePostInput{Title: "t"}},
		{"bad media type", CreatePostInput{Title: "t", Content: "c", MediaType: "gif"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), identity(f.alice), tt.input)
			assertCode(t, err, models.CodeBadRequest)
		})
	}

	post, err := f.svc.Create(context.Background(), identity(f.alice), CreatePostInput{
		Title: "t", Content: "c", IsDownloadable: &no, Tags: []string{"go", " go ", "db"},
	})
	require.NoError(t, err)
	assert.False(t, post.IsDownloadable)
	assert.Equal(t, []string{"go", "db"}, post.Tags)
}

func TestPostService_UpdatePartial(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Original", "")

	updated, err := f.svc.Update(ctx, identity(f.alice), post.ID, UpdatePostInput{Content: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "Original", updated.Title)
	assert.Equal(t, "", updated.Content)
	assert.Equal(t, post.CreatedAt.Unix(), updated.CreatedAt.Unix())

	updated, err = f.svc.Update(ctx, identity(f.admin), post.ID, UpdatePostInput{Title: strPtr("By admin")})
	require.NoError(t, err)
	assert.Equal(t, "By admin", updated.Title)
	assert.Equal(t, f.alice.ID, updated.AuthorID)
}

func TestPostService_UpdateChecksExistenceBeforeOwnership(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Mine", "")

	_, err := f.svc.Update(ctx, identity(f.bob), "missing", UpdatePostInput{Title: strPtr("x")})
	assertCode(t, err, models.CodeNotFound)

	_, err = f.svc.Update(ctx, identity(f.bob), post.ID, UpdatePostInput{Title: strPtr("x")})
	appErr := assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, "Not authorized", appErr.Message)

	err = f.svc.Delete(ctx, identity(f.bob), post.ID)
	assertCode(t, err, models.CodeForbidden)
}

func TestPostService_UpdateReleasesReplacedMedia(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Pic", "image/old")

	_, err := f.svc.Update(ctx, identity(f.alice), post.ID, UpdatePostInput{Title: strPtr("Same media")})
	require.NoError(t, err)
	assert.Empty(t, f.releaser.PublicIDs())

	updated, err := f.svc.Update(ctx, identity(f.alice), post.ID, UpdatePostInput{
		MediaPublicID: strPtr("image/new"),
		MediaURL:      strPtr("https://cdn.example.com/image/new"),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/new", updated.MediaPublicID)
	assert.Equal(t, []string{"image/old"}, f.releaser.PublicIDs())
}

func TestPostService_DeleteReleasesMedia(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()

	video, err := f.svc.Create(ctx, identity(f.alice), CreatePostInput{
		Title: "Clip", Content: "c", MediaType: models.MediaVideo, MediaPublicID: "video/clip", MediaURL: "u",
	})
	require.NoError(t, err)
	plain := testutil.CreatePost(t, f.store.Posts, f.alice, "Plain", "")

	require.NoError(t, f.svc.Delete(ctx, identity(f.alice), video.ID))
	require.NoError(t, f.svc.Delete(ctx, identity(f.admin), plain.ID))

	assert.Equal(t, []models.MediaRef{{PublicID: "video/clip", ResourceType: "video"}}, f.releaser.Refs())

	_, err = f.svc.Get(ctx, video.ID)
	appErr := assertCode(t, err, models.CodeNotFound)
	assert.Equal(t, "Post not found", appErr.Message)

	err = f.svc.Delete(ctx, identity(f.alice), video.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_DeleteKeepsMediaHeldElsewhere(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()

	original, err := f.svc.Create(ctx, identity(f.alice), CreatePostInput{
		Title: "Original", Content: "c", MediaType: models.MediaImage, MediaPublicID: "image/alice", MediaURL: "u",
	})
	require.NoError(t, err)
	copied, err := f.svc.Create(ctx, identity(f.bob), CreatePostInput{
		Title: "Copy", Content: "c", MediaType: models.MediaImage, MediaPublicID: "image/alice", MediaURL: "u",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, identity(f.bob), copied.ID))
	assert.Empty(t, f.releaser.PublicIDs())

	require.NoError(t, f.svc.Delete(ctx, identity(f.alice), original.ID))
	assert.Equal(t, []string{"image/alice"}, f.releaser.PublicIDs())
}

func TestPostService_UpdateKeepsMediaHeldByAvatar(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()

	f.bob.ProfilePic, f.bob.ProfilePicID = "https://cdn/bob", "image/bob-avatar"
	require.NoError(t, f.store.Users.Update(ctx, f.bob, repository.ColProfilePic, repository.ColProfilePicID))

	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Borrowed", "image/bob-avatar")
	_, err := f.svc.Update(ctx, identity(f.alice), post.ID, UpdatePostInput{MediaPublicID: strPtr("image/own")})
	require.NoError(t, err)
	assert.Empty(t, f.releaser.PublicIDs())
}

func TestPostService_ToggleLikeScenario(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Likeable", "")

	got, err := f.svc.ToggleLike(ctx, identity(f.bob), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.bob.ID}, got.Likes)

	got, err = f.svc.ToggleLike(ctx, identity(f.alice), post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.bob.ID, f.alice.ID}, got.Likes)

	got, err = f.svc.ToggleLike(ctx, identity(f.bob), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.alice.ID}, got.Likes)

	_, err = f.svc.ToggleLike(ctx, identity(f.bob), "missing")
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_ConcurrentLikesAreNotLost(t *testing.T) {
	f := newPostFixture(t)
	ctx := context.Background()
	post := testutil.CreatePost(t, f.store.Posts, f.alice, "Popular", "")

	likers := []*models.User{f.alice, f.bob, f.admin}
	var wg sync.WaitGroup
	for _, u := range likers {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := f.svc.ToggleLike(ctx, identity(u), post.ID)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, len(likers))
}

func TestPostService_List(t *testing.T) {
	f := newPostFixture(t)
	testutil.CreatePost(t, f.store.Posts, f.alice, "first", "")
	testutil.CreatePost(t, f.store.Posts, f.bob, "second", "")

	all, err := f.svc.List(context.Background(), Page{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, p := range all {
		assert.NotNil(t, p.Author)
	}

	one, err := f.svc.List(context.Background(), Page{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

type failingPosts struct {
	repository.PostRepository
	err error
}

func (f failingPosts) GetByID(context.Context, string) (*models.Post, error) {
	return nil, f.err
}

func TestPostService_StoreFailureIsPropagated(t *testing.T) {
	storeErr := models.NewInternalError(errors.New("connection reset"))
	svc := NewPostService(failingPosts{err: storeErr}, nil, nil)

	_, err := svc.Update(context.Background(), identity(&models.User{ID: "u"}), "p", UpdatePostInput{})
	assert.ErrorIs(t, err, storeErr)
	assertCode(t, err, models.CodeInternal)
}
