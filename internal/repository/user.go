package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"devsnippet/internal/cache"
	"devsnippet/internal/models"
	"devsnippet/internal/observability"

	"gorm.io/gorm"
)

// User columns an update may name.
const (
	ColUsername     = "username"
	ColEmail        = "email"
	ColRole         = "role"
	ColBio          = "bio"
	ColProfilePic   = "profile_pic"
	ColProfilePicID = "profile_pic_id"
)

var profileColumns = []string{ColUsername, ColEmail, ColRole, ColBio, ColProfilePic, ColProfilePicID}

// updateColumns validates columns and appends updated_at.
func updateColumns(columns []string) ([]string, error) {
	if len(columns) == 0 {
		return nil, models.NewInternalError(errors.New("user update names no columns"))
	}
	out := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if !slices.Contains(profileColumns, c) {
			return nil, models.NewInternalError(fmt.Errorf("user column %q is not updatable", c))
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return append(out, "updated_at"), nil
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("get_by_id", "users")()
		if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get_by_id_for_update", "users")()
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", models.NormalizeEmail(email))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// findOne returns nil, nil when nothing matches.
func (r *userRepository) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Username or email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User, columns ...string) error {
	cols, err := updateColumns(columns)
	if err != nil {
		return err
	}
	user.Email = models.NormalizeEmail(user.Email)
	result := r.db.WithContext(ctx).Model(user).Select(cols).Updates(user)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return models.NewConflictError("Username or email already exists")
		}
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

// DeleteWithContent removes the user, their posts, the likes on those posts and
// the likes the user left elsewhere, in one transaction.
func (r *userRepository) DeleteWithContent(ctx context.Context, id string) (*DeletedAccount, error) {
	var deleted DeletedAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&deleted.User, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return err
		}

		var posts []models.Post
		if err := tx.Select("id", "media_public_id", "media_type").
			Where("author_id = ?", id).
			Find(&posts).Error; err != nil {
			return err
		}
		deleted.PostIDs = postIDsOf(posts)
		deleted.Media = mediaRefsOf(posts)

		if len(deleted.PostIDs) > 0 {
			if err := tx.Where("post_id IN ?", deleted.PostIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", deleted.PostIDs).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
	if err != nil {
		return nil, internal(err)
	}

	if deleted.User.ProfilePicID != "" {
		deleted.Media = append(deleted.Media, models.MediaRef{PublicID: deleted.User.ProfilePicID, ResourceType: string(models.MediaImage)})
	}
	cache.InvalidateUser(ctx, id)
	cache.InvalidatePost(ctx, deleted.PostIDs...)
	return &deleted, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("created_at").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
