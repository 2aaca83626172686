package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"anoa.com/yamdb/internal/entity"
)

// TitleQuery narrows a title listing. Zero fields do not filter.
type TitleQuery struct {
	CategorySlug string
	GenreSlug    string
	Name         string
	Year         *int
}

type TitleRepository interface {
	FindAll(ctx context.Context, q TitleQuery, offset, limit int) ([]*entity.Title, int64, error)
	FindByID(ctx context.Context, id uint) (*entity.Title, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*entity.Title, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*entity.Category, error)
	FindGenresBySlugs(ctx context.Context, slugs []string) ([]entity.Genre, error)

	// Create inserts the title and links title.Genres.
	Create(ctx context.Context, title *entity.Title) error
	// Update writes the given columns and, when genres is non-nil, replaces the genre links.
	Update(ctx context.Context, title *entity.Title, columns map[string]interface{}, genres []entity.Genre) error
	UpdateCover(ctx context.Context, id uint, url string) error
	// Delete removes the title with its genre links, reviews and their comments.
	Delete(ctx context.Context, id uint) error

	// EachBatch walks every title with category and genres loaded.
	EachBatch(ctx context.Context, size int, fn func([]*entity.Title) error) error
}

type titleRepository struct {
	db *gorm.DB
}

func NewTitleRepository(db *gorm.DB) TitleRepository {
	return &titleRepository{db: db}
}

func (r *titleRepository) FindAll(ctx context.Context, q TitleQuery, offset, limit int) ([]*entity.Title, int64, error) {
	var titles []*entity.Title
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Title{})

	if q.CategorySlug != "" {
		query = query.Where("category_id IN (?)",
			r.db.Model(&entity.Category{}).Select("id").Where("slug = ?", q.CategorySlug))
	}
	if q.GenreSlug != "" {
		query = query.Where("id IN (?)",
			r.db.Table(entity.TitleGenresTable+" AS tg").
				Select("tg.title_id").
				Joins("JOIN genres ON genres.id = tg.genre_id").
				Where("genres.slug = ?", q.GenreSlug))
	}
	if q.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Year != nil {
		query = query.Where("year = ?", *q.Year)
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Session(&gorm.Session{}).
		Preload("Category").
		Preload("Genres").
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&titles).Error; err != nil {
		return nil, 0, err
	}

	return titles, total, nil
}

func (r *titleRepository) FindByID(ctx context.Context, id uint) (*entity.Title, error) {
	var title entity.Title
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Genres").
		First(&title, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &title, nil
}

func (r *titleRepository) FindByIDs(ctx context.Context, ids []uint) ([]*entity.Title, error) {
	var titles []*entity.Title
	if len(ids) == 0 {
		return titles, nil
	}
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Genres").
		Where("id IN ?", ids).
		Find(&titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

func (r *titleRepository) FindCategoryBySlug(ctx context.Context, slug string) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *titleRepository) FindGenresBySlugs(ctx context.Context, slugs []string) ([]entity.Genre, error) {
	var genres []entity.Genre
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Order("slug ASC").Find(&genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

func (r *titleRepository) Create(ctx context.Context, title *entity.Title) error {
	genres := title.Genres
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(title).Error; err != nil {
			return err
		}
		if len(genres) == 0 {
			return nil
		}
		return tx.Model(title).Association("Genres").Replace(genres)
	})
}

func (r *titleRepository) Update(ctx context.Context, title *entity.Title, columns map[string]interface{}, genres []entity.Genre) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(columns) > 0 {
			if err := tx.Model(&entity.Title{ID: title.ID}).Updates(columns).Error; err != nil {
				return err
			}
		}
		switch {
		case genres == nil:
			return nil
		case len(genres) == 0:
			return tx.Model(&entity.Title{ID: title.ID}).Association("Genres").Clear()
		}
		return tx.Model(&entity.Title{ID: title.ID}).Association("Genres").Replace(genres)
	})
}

func (r *titleRepository) UpdateCover(ctx context.Context, id uint, url string) error {
	return r.db.WithContext(ctx).Model(&entity.Title{ID: id}).Update("cover_url", url).Error
}

func (r *titleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+entity.TitleGenresTable+" WHERE title_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("review_id IN (?)",
			tx.Model(&entity.Review{}).Select("id").Where("title_id = ?", id),
		).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("title_id = ?", id).Delete(&entity.Review{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&entity.Title{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *titleRepository) EachBatch(ctx context.Context, size int, fn func([]*entity.Title) error) error {
	var batch []*entity.Title
	return r.db.WithContext(ctx).
		Preload("Category").
		Preload("Genres").
		FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
