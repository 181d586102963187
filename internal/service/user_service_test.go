package service

import (
	"context"
	"testing"

	"devsnippet/internal/cache"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"
	"devsnippet/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_PublicProfile(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	svc := NewUserService(store.Users, store.Posts, nil)
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleUser)
	testutil.CreatePost(t, store.Posts, alice, "one", "")
	testutil.CreatePost(t, store.Posts, alice, "two", "")

	profile, err := svc.PublicProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, profile.ID)
	assert.EqualValues(t, 2, profile.PostsCount)

	_, err = svc.PublicProfile(context.Background(), "nobody")
	appErr := assertCode(t, err, models.CodeNotFound)
	assert.Equal(t, "User not found", appErr.Message)
}

func TestUserService_UpdateOwnProfile(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	svc := NewUserService(store.Users, store.Posts, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleUser)
	testutil.CreateUser(t, store.Users, "bob", models.RoleUser)

	updated, err := svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Username: strPtr(""), Bio: strPtr("Gopher")})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "Gopher", updated.Bio)

	updated, err = svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Bio: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, updated.Bio)

	_, err = svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Username: strPtr("bob")})
	assertCode(t, err, models.CodeConflict)

	_, err = svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Username: strPtr("a!")})
	assertCode(t, err, models.CodeBadRequest)

	updated, err = svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Username: strPtr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)

	stored, err := store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Password, stored.Password)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestUserService_SetAvatar(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	releaser := &testutil.RecordingReleaser{}
	svc := NewUserService(store.Users, store.Posts, releaser)
	ctx := context.Background()
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleUser)

	_, err := svc.SetAvatar(ctx, identity(alice), "", "")
	appErr := assertCode(t, err, models.CodeBadRequest)
	assert.Equal(t, "No image data provided", appErr.Message)

	updated, err := svc.SetAvatar(ctx, identity(alice), "https://cdn/a1", "image/a1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a1", updated.ProfilePic)
	assert.Equal(t, "image/a1", updated.ProfilePicID)
	assert.Empty(t, releaser.PublicIDs())

	_, err = svc.SetAvatar(ctx, identity(alice), "https://cdn/a2", "image/a2")
	require.NoError(t, err)
	assert.Equal(t, []string{"image/a1"}, releaser.PublicIDs())
}

func TestUserService_SetAvatarKeepsAssetUsedByPost(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	releaser := &testutil.RecordingReleaser{}
	svc := NewUserService(store.Users, store.Posts, releaser)
	ctx := context.Background()
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleUser)
	bob := testutil.CreateUser(t, store.Users, "bob", models.RoleUser)
	testutil.CreatePost(t, store.Posts, bob, "bob's picture", "image/bob")

	_, err := svc.SetAvatar(ctx, identity(alice), "https://cdn/bob", "image/bob")
	require.NoError(t, err)
	_, err = svc.SetAvatar(ctx, identity(alice), "https://cdn/alice", "image/alice")
	require.NoError(t, err)
	assert.Empty(t, releaser.PublicIDs())
}

func TestUserService_UpdateOwnProfileIgnoresStaleCachedRole(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { _ = cache.Close() })

	store := testutil.NewSQLiteStore(t)
	svc := NewUserService(store.Users, store.Posts, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleAdmin)

	// a request authenticates while alice is still admin
	_, err := store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)

	// demoted by a process that could not reach the cache
	cache.SetClient(nil)
	demoted := *alice
	demoted.Role = models.RoleUser
	require.NoError(t, store.Users.Update(ctx, &demoted, repository.ColRole))
	cache.SetClient(rdb)
	require.True(t, mr.Exists(cache.UserKey(alice.ID)))

	updated, err := svc.UpdateOwnProfile(ctx, identity(alice), UpdateProfileInput{Bio: strPtr("still here")})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, updated.Role)

	stored, err := store.Users.GetByIDForUpdate(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.Equal(t, "still here", stored.Bio)
}

func TestUserService_SetAvatarIgnoresStaleCachedProfile(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { _ = cache.Close() })

	store := testutil.NewSQLiteStore(t)
	svc := NewUserService(store.Users, store.Posts, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, store.Users, "alice", models.RoleUser)

	_, err := store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)

	cache.SetClient(nil)
	renamed := *alice
	renamed.Bio = "written elsewhere"
	require.NoError(t, store.Users.Update(ctx, &renamed, repository.ColBio))
	cache.SetClient(rdb)

	_, err = svc.SetAvatar(ctx, identity(alice), "https://cdn/a.png", "image/a.png")
	require.NoError(t, err)

	stored, err := store.Users.GetByIDForUpdate(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "written elsewhere", stored.Bio)
	assert.Equal(t, "image/a.png", stored.ProfilePicID)
}
