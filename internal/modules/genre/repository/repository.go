package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"anoa.com/yamdb/internal/entity"
)

type GenreRepository interface {
	Create(ctx context.Context, genre *entity.Genre) error
	FindBySlug(ctx context.Context, slug string) (*entity.Genre, error)
	FindAll(ctx context.Context, search string, offset, limit int) ([]*entity.Genre, int64, error)
	Delete(ctx context.Context, genre *entity.Genre) error
}

type genreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) GenreRepository {
	return &genreRepository{db: db}
}

func (r *genreRepository) Create(ctx context.Context, genre *entity.Genre) error {
	return r.db.WithContext(ctx).Create(genre).Error
}

func (r *genreRepository) FindBySlug(ctx context.Context, slug string) (*entity.Genre, error) {
	var genre entity.Genre
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&genre).Error; err != nil {
		return nil, err
	}
	return &genre, nil
}

func (r *genreRepository) FindAll(ctx context.Context, search string, offset, limit int) ([]*entity.Genre, int64, error) {
	var genres []*entity.Genre
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Genre{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Session(&gorm.Session{}).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&genres).Error; err != nil {
		return nil, 0, err
	}
	return genres, total, nil
}

// Delete removes the genre and unlinks it from every title.
func (r *genreRepository) Delete(ctx context.Context, genre *entity.Genre) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+entity.TitleGenresTable+" WHERE genre_id = ?", genre.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Genre{}, "id = ?", genre.ID).Error
	})
}
