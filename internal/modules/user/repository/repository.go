package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/entity"
	reviewRepo "anoa.com/yamdb/internal/modules/review/repository"
	review "anoa.com/yamdb/internal/modules/review/service"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindAll(ctx context.Context, search string, offset, limit int) ([]*entity.User, int64, error)
	// Update writes only the given columns.
	Update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error
	// Delete removes the user with their reviews and comments, recomputes the
	// rating of every title they had reviewed and returns those ratings.
	Delete(ctx context.Context, id uuid.UUID) (map[uint]*float64, error)

	SetConfirmation(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	ClearConfirmation(ctx context.Context, id uuid.UUID) error
	// PurgeExpiredConfirmations clears codes that expired before now.
	PurgeExpiredConfirmations(ctx context.Context, now time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(ctx context.Context, search string, offset, limit int) ([]*entity.User, int64, error) {
	var users []*entity.User
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.User{})
	if search != "" {
		query = query.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Session(&gorm.Session{}).
		Order("username ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	if len(columns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.User{ID: id}).Updates(columns).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) (map[uint]*float64, error) {
	ratings := map[uint]*float64{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := reviewRepo.NewReviewRepository(tx)

		var titleIDs []uint
		if err := tx.Model(&entity.Review{}).
			Where("author_id = ?", id).
			Distinct().
			Order("title_id").
			Pluck("title_id", &titleIDs).Error; err != nil {
			return err
		}

		// Titles are locked in id order before their reviews change.
		for _, titleID := range titleIDs {
			if _, err := reviews.LockTitle(ctx, titleID); err != nil {
				return err
			}
		}

		// Comments on the user's reviews go first, then the user's own comments and reviews.
		if err := tx.Where("review_id IN (?)",
			tx.Model(&entity.Review{}).Select("id").Where("author_id = ?", id),
		).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&entity.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entity.User{}, "id = ?", id).Error; err != nil {
			return err
		}

		for _, titleID := range titleIDs {
			rating, err := review.Recompute(ctx, reviews, titleID)
			if err != nil {
				return err
			}
			ratings[titleID] = rating
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r *userRepository) SetConfirmation(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.User{ID: id}).Updates(map[string]interface{}{
		"confirmation_code_hash":  hash,
		"confirmation_expires_at": expiresAt,
	}).Error
}

func (r *userRepository) ClearConfirmation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entity.User{ID: id}).Updates(map[string]interface{}{
		"confirmation_code_hash":  "",
		"confirmation_expires_at": nil,
	}).Error
}

func (r *userRepository) PurgeExpiredConfirmations(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("confirmation_expires_at IS NOT NULL AND confirmation_expires_at < ?", now).
		Updates(map[string]interface{}{
			"confirmation_code_hash":  "",
			"confirmation_expires_at": nil,
		})
	return res.RowsAffected, res.Error
}
