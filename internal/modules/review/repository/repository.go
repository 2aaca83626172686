package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"anoa.com/yamdb/internal/entity"
)

type ReviewRepository interface {
	// WithinTransaction runs fn with a repository bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(tx ReviewRepository) error) error

	// LockTitle loads the title and, where the driver supports it, locks its row.
	LockTitle(ctx context.Context, titleID uint) (*entity.Title, error)
	TitleExists(ctx context.Context, titleID uint) (bool, error)

	FindByID(ctx context.Context, titleID, reviewID uint) (*entity.Review, error)
	FindByTitleAndAuthor(ctx context.Context, titleID uint, authorID uuid.UUID) (*entity.Review, error)
	FindByTitle(ctx context.Context, titleID uint, offset, limit int) ([]*entity.Review, int64, error)
	Create(ctx context.Context, review *entity.Review) error
	Update(ctx context.Context, review *entity.Review) error
	Delete(ctx context.Context, review *entity.Review) error

	Scores(ctx context.Context, titleID uint) ([]int, error)
	SetTitleRating(ctx context.Context, titleID uint, rating *float64) error
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) WithinTransaction(ctx context.Context, fn func(tx ReviewRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&reviewRepository{db: tx})
	})
}

func (r *reviewRepository) LockTitle(ctx context.Context, titleID uint) (*entity.Title, error) {
	var title entity.Title
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&title, "id = ?", titleID).Error; err != nil {
		return nil, err
	}
	return &title, nil
}

func (r *reviewRepository) TitleExists(ctx context.Context, titleID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Title{}).Where("id = ?", titleID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *reviewRepository) FindByID(ctx context.Context, titleID, reviewID uint) (*entity.Review, error) {
	var review entity.Review
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND title_id = ?", reviewID, titleID).
		First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByTitleAndAuthor(ctx context.Context, titleID uint, authorID uuid.UUID) (*entity.Review, error) {
	var review entity.Review
	if err := r.db.WithContext(ctx).
		Where("title_id = ? AND author_id = ?", titleID, authorID).
		First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByTitle(ctx context.Context, titleID uint, offset, limit int) ([]*entity.Review, int64, error) {
	var reviews []*entity.Review
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Review{}).Where("title_id = ?", titleID)

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Session(&gorm.Session{}).
		Preload("Author").
		Order("pub_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&reviews).Error; err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error
}

func (r *reviewRepository) Update(ctx context.Context, review *entity.Review) error {
	return r.db.WithContext(ctx).
		Model(&entity.Review{ID: review.ID}).
		Select("text", "score").
		Updates(map[string]interface{}{"text": review.Text, "score": review.Score}).Error
}

// Delete removes the review together with its comments.
func (r *reviewRepository) Delete(ctx context.Context, review *entity.Review) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("review_id = ?", review.ID).Delete(&entity.Comment{}).Error; err != nil {
		return err
	}
	return db.Delete(&entity.Review{}, "id = ?", review.ID).Error
}

func (r *reviewRepository) Scores(ctx context.Context, titleID uint) ([]int, error) {
	var scores []int
	if err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Where("title_id = ?", titleID).
		Pluck("score", &scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *reviewRepository) SetTitleRating(ctx context.Context, titleID uint, rating *float64) error {
	return r.db.WithContext(ctx).
		Model(&entity.Title{}).
		Where("id = ?", titleID).
		UpdateColumn("rating", rating).Error
}
