package repository

import (
	"context"
	"time"

	"devsnippet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type mediaCleanupRepository struct {
	db *gorm.DB
}

// NewMediaCleanupRepository returns the relational cleanup queue.
func NewMediaCleanupRepository(db *gorm.DB) MediaCleanupRepository {
	return &mediaCleanupRepository{db: db}
}

// Enqueue records a failed release; repeated failures for the same asset bump Attempts.
func (r *mediaCleanupRepository) Enqueue(ctx context.Context, ref models.MediaRef, cause string) error {
	entry := models.PendingMediaDeletion{
		PublicID:     ref.PublicID,
		ResourceType: ref.ResourceType,
		Attempts:     1,
		LastError:    cause,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "public_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"attempts":   gorm.Expr("media_cleanups.attempts + 1"),
			"last_error": cause,
			"updated_at": time.Now(),
		}),
	}).Create(&entry).Error
	return internal(err)
}

func (r *mediaCleanupRepository) ListDue(ctx context.Context, limit int) ([]models.PendingMediaDeletion, error) {
	entries := []models.PendingMediaDeletion{}
	q := r.db.WithContext(ctx).Order("updated_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (r *mediaCleanupRepository) MarkDone(ctx context.Context, id string) error {
	return internal(r.db.WithContext(ctx).Delete(&models.PendingMediaDeletion{}, "id = ?", id).Error)
}

func (r *mediaCleanupRepository) MarkFailed(ctx context.Context, id string, cause string) error {
	err := r.db.WithContext(ctx).Model(&models.PendingMediaDeletion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
		}).Error
	return internal(err)
}

// NewGormStore wires the relational repositories around one connection pool.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:    NewUserRepository(db),
		Posts:    NewPostRepository(db),
		Cleanups: NewMediaCleanupRepository(db),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}
