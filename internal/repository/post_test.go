package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"devsnippet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateAndGet(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	p := &models.Post{
		Title:          "Hello",
		Content:        "world",
		AuthorID:       alice.ID,
		Tags:           []string{"go", "api"},
		IsDownloadable: true,
	}
	require.NoError(t, posts.Create(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.MediaNone, p.MediaType)
	require.NotNil(t, p.Author)
	assert.Equal(t, "alice", p.Author.Username)

	got, err := posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "api"}, got.Tags)
	assert.Equal(t, []string{}, got.Likes)
	assert.True(t, got.IsDownloadable)
	require.NotNil(t, got.Author)
	assert.Equal(t, alice.ID, got.Author.ID)
	assert.Equal(t, "alice", got.Author.Username)

	_, err = posts.GetByID(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		p := &models.Post{Title: fmt.Sprintf("post-%d", i), Content: "c", AuthorID: alice.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, posts.Create(ctx, p))
	}

	all, err := posts.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "post-3", all[0].Title)
	assert.Equal(t, "post-0", all[3].Title)
	for _, p := range all {
		require.NotNil(t, p.Author)
		assert.NotNil(t, p.Likes)
	}

	page, err := posts.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "post-2", page[0].Title)

	n, err := posts.CountByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	p := createPost(t, posts, alice, "draft")

	p.Title = "final"
	p.IsDownloadable = false
	p.Tags = nil
	require.NoError(t, posts.Update(ctx, p))

	got, err := posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.False(t, got.IsDownloadable)
	assert.Equal(t, []string{}, got.Tags)

	require.NoError(t, posts.Delete(ctx, p.ID))
	_, err = posts.GetByID(ctx, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.True(t, models.IsCode(posts.Delete(ctx, p.ID), models.CodeNotFound))
	assert.True(t, models.IsCode(posts.Update(ctx, p), models.CodeNotFound))
}

func TestPostRepository_ToggleLike(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	p := createPost(t, posts, alice, "likeable")

	got, liked, err := posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []string{bob.ID}, got.Likes)

	got, liked, err = posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Empty(t, got.Likes)

	_, _, err = posts.ToggleLike(ctx, "missing", bob.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ToggleLikeConcurrent(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	p := createPost(t, posts, alice, "popular")

	const likers = 8
	ids := make([]string, likers)
	for i := range ids {
		ids[i] = createUser(t, users, fmt.Sprintf("fan%d", i)).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, _, err := posts.ToggleLike(ctx, p.ID, userID)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	got, err := posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got.Likes)

	// An even number of toggles by one user leaves no like behind.
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := posts.ToggleLike(ctx, p.ID, alice.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err = posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.LikedBy(alice.ID))
	assert.Len(t, got.Likes, likers)
}

func TestPostRepository_AddRemoveLikeIdempotent(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	p := createPost(t, posts, alice, "p")

	require.NoError(t, posts.AddLike(ctx, p.ID, alice.ID))
	require.NoError(t, posts.AddLike(ctx, p.ID, alice.ID))
	got, err := posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, got.Likes)

	require.NoError(t, posts.RemoveLike(ctx, p.ID, alice.ID))
	require.NoError(t, posts.RemoveLike(ctx, p.ID, alice.ID))
	got, err = posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)
}

func TestPostRepository_Orphans(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	ghost := createUser(t, users, "ghost")
	kept := createPost(t, posts, alice, "kept")
	orphan := createPost(t, posts, ghost, "orphan")
	require.NoError(t, posts.AddLike(ctx, orphan.ID, alice.ID))

	// Remove the author without the cascade to leave the post behind.
	require.NoError(t, db.Delete(&models.User{}, "id = ?", ghost.ID).Error)

	orphans, err := posts.FindOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)

	n, err := posts.DeleteMany(ctx, []string{orphan.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	orphans, err = posts.FindOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	total, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	_, err = posts.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestMediaCleanupRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewMediaCleanupRepository(db)
	ctx := context.Background()

	ref := models.MediaRef{PublicID: "img-1", ResourceType: "image"}
	require.NoError(t, repo.Enqueue(ctx, ref, "timeout"))
	require.NoError(t, repo.Enqueue(ctx, ref, "breaker open"))
	require.NoError(t, repo.Enqueue(ctx, models.MediaRef{PublicID: "vid-1", ResourceType: "video"}, "boom"))

	due, err := repo.ListDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)

	byID := map[string]models.PendingMediaDeletion{}
	for _, d := range due {
		byID[d.PublicID] = d
	}
	assert.Equal(t, 2, byID["img-1"].Attempts)
	assert.Equal(t, "breaker open", byID["img-1"].LastError)
	img1 := byID["img-1"]
	assert.Equal(t, ref, img1.Ref())

	require.NoError(t, repo.MarkFailed(ctx, byID["vid-1"].ID, "still down"))
	require.NoError(t, repo.MarkDone(ctx, byID["img-1"].ID))

	due, err = repo.ListDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "vid-1", due[0].PublicID)
	assert.Equal(t, 2, due[0].Attempts)
	assert.Equal(t, "still down", due[0].LastError)
}

func TestPostRepository_ToggleLikeBumpsUpdatedAt(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")
	p := createPost(t, posts, alice, "likeable")

	hourAgo := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).UpdateColumn("updated_at", hourAgo).Error)

	got, _, err := posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(hourAgo.Add(time.Minute)))
	afterLike := got.UpdatedAt

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).UpdateColumn("updated_at", hourAgo).Error)
	got, _, err = posts.ToggleLike(ctx, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(hourAgo.Add(time.Minute)))
	assert.False(t, got.UpdatedAt.Before(afterLike))
}

func TestPostRepository_CountMediaReferences(t *testing.T) {
	db := newSQLiteDB(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	p := &models.Post{Title: "pic", Content: "c", AuthorID: alice.ID, MediaType: models.MediaImage, MediaPublicID: "image/shared", MediaURL: "u"}
	require.NoError(t, posts.Create(ctx, p))
	alice.ProfilePic, alice.ProfilePicID = "https://cdn/avatar", "image/shared"
	require.NoError(t, users.Update(ctx, alice, ColProfilePic, ColProfilePicID))

	for id, want := range map[string]int64{"image/shared": 2, "image/gone": 0, "": 0} {
		n, err := posts.CountMediaReferences(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, n, id)
	}

	require.NoError(t, posts.Delete(ctx, p.ID))
	n, err := posts.CountMediaReferences(ctx, "image/shared")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
