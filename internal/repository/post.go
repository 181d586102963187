package repository

import (
	"context"
	"errors"
	"time"

	"devsnippet/internal/cache"
	"devsnippet/internal/models"
	"devsnippet/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var postColumns = []string{"title", "content", "media_url", "media_type", "media_public_id", "is_downloadable", "tags", "updated_at"}

// postRepository implements PostRepository on a relational store.
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return r.hydrate(ctx, []*models.Post{post})
}

// GetByID caches the bare row; author and likes are always read fresh.
func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	posts := []*models.Post{}
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.hydrate(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// hydrate loads authors and like sets for posts in two queries.
func (r *postRepository) hydrate(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	var authors []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", authorIDsOf(posts)).Find(&authors).Error; err != nil {
		return models.NewInternalError(err)
	}

	var likes []models.Like
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at").
		Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}

	byPost := make(map[string][]string, len(posts))
	for _, l := range likes {
		byPost[l.PostID] = append(byPost[l.PostID], l.UserID)
	}
	for _, p := range posts {
		p.Likes = byPost[p.ID]
	}

	attachAuthors(posts, authors)
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	post.Normalize()
	result := r.db.WithContext(ctx).Model(post).Select(postColumns).Updates(post)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post")
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFoundError("Post")
	}
	return nil
}

// DeleteMany removes posts and their likes, reporting how many posts went away.
func (r *postRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id IN ?", ids).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Post{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, ids...)
	return deleted, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// ToggleLike flips membership of userID in the post's likes set.
// The delete-or-insert loop relies on the (post_id, user_id) primary key: an
// insert that loses a race inserts nothing and the loop goes back to deleting.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, bool, error) {
	defer observability.TrackQuery("toggle_like", "likes")()

	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Post")
		}

		for attempt := 0; attempt < maxToggleAttempts; attempt++ {
			removed := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
			if removed.Error != nil {
				return removed.Error
			}
			if removed.RowsAffected > 0 {
				liked = false
				return touchPost(tx, postID)
			}

			added := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Like{PostID: postID, UserID: userID})
			if added.Error != nil {
				return added.Error
			}
			if added.RowsAffected > 0 {
				liked = true
				return touchPost(tx, postID)
			}
		}
		return errToggleContention
	})
	if err != nil {
		return nil, false, internal(err)
	}
	cache.InvalidatePost(ctx, postID)

	post, err := r.GetByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return post, liked, nil
}

func (r *postRepository) CountMediaReferences(ctx context.Context, publicID string) (int64, error) {
	if publicID == "" {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	var posts, avatars int64
	if err := db.Model(&models.Post{}).Where("media_public_id = ?", publicID).Count(&posts).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if err := db.Model(&models.User{}).Where("profile_pic_id = ?", publicID).Count(&avatars).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return posts + avatars, nil
}

// touchPost bumps updated_at; a like toggle counts as a modification.
func touchPost(tx *gorm.DB, postID string) error {
	return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("updated_at", time.Now().UTC()).Error
}

func (r *postRepository) AddLike(ctx context.Context, postID, userID string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{PostID: postID, UserID: userID}).Error
	return internal(err)
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{}).Error
	return internal(err)
}

// FindOrphans lists posts whose author no longer exists.
func (r *postRepository) FindOrphans(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	existing := r.db.Model(&models.User{}).Select("id")
	if err := r.db.WithContext(ctx).
		Where("author_id NOT IN (?)", existing).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
