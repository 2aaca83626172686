package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"anoa.com/yamdb/internal/entity"
)

type CommentRepository interface {
	// ReviewExists reports whether reviewID belongs to titleID.
	ReviewExists(ctx context.Context, titleID, reviewID uint) (bool, error)
	FindByID(ctx context.Context, reviewID, commentID uint) (*entity.Comment, error)
	FindByReview(ctx context.Context, reviewID uint, offset, limit int) ([]*entity.Comment, int64, error)
	Create(ctx context.Context, comment *entity.Comment) error
	Update(ctx context.Context, comment *entity.Comment) error
	Delete(ctx context.Context, commentID uint) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) ReviewExists(ctx context.Context, titleID, reviewID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Where("id = ? AND title_id = ?", reviewID, titleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *commentRepository) FindByID(ctx context.Context, reviewID, commentID uint) (*entity.Comment, error) {
	var comment entity.Comment
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND review_id = ?", commentID, reviewID).
		First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) FindByReview(ctx context.Context, reviewID uint, offset, limit int) ([]*entity.Comment, int64, error) {
	var comments []*entity.Comment
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Comment{}).Where("review_id = ?", reviewID)

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Session(&gorm.Session{}).
		Preload("Author").
		Order("pub_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *commentRepository) Update(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).
		Model(&entity.Comment{ID: comment.ID}).
		Update("text", comment.Text).Error
}

func (r *commentRepository) Delete(ctx context.Context, commentID uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Comment{}, "id = ?", commentID).Error
}
