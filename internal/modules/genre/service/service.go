package genre

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/genre/dto"
	"anoa.com/yamdb/internal/modules/genre/repository"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/validator"
)

type GenreService interface {
	CreateGenre(ctx context.Context, p authz.Principal, req dto.CreateGenreRequest) (*dto.GenreResponse, error)
	GetAllGenres(ctx context.Context, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.GenreResponse], error)
	DeleteGenre(ctx context.Context, p authz.Principal, slug string) error
}

type genreService struct {
	repo  repository.GenreRepository
	authz authz.Authorizer
}

func NewGenreService(repo repository.GenreRepository, authorizer authz.Authorizer) GenreService {
	return &genreService{repo: repo, authz: authorizer}
}

func (s *genreService) CreateGenre(ctx context.Context, p authz.Principal, req dto.CreateGenreRequest) (*dto.GenreResponse, error) {
	if err := s.authz.Require(p, authz.ResourceGenre, authz.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	slug := req.Slug
	if slug == "" {
		slug = validator.Slugify(req.Name)
	}
	if slug == "" {
		return nil, apperror.NewValidationError("slug", "could not derive a slug from the name, please provide one")
	}

	existing, err := s.repo.FindBySlug(ctx, slug)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if existing != nil {
		return nil, apperror.NewValidationError("slug", "genre with this slug already exists")
	}

	genre := &entity.Genre{Name: req.Name, Slug: slug}
	if err := s.repo.Create(ctx, genre); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewValidationError("slug", "genre with this slug already exists")
		}
		return nil, fmt.Errorf("failed to create genre: %w", err)
	}

	res := dto.NewGenreResponse(genre)
	return &res, nil
}

func (s *genreService) GetAllGenres(ctx context.Context, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.GenreResponse], error) {
	q := filter.PaginationQuery.Normalize()

	genres, total, err := s.repo.FindAll(ctx, filter.Search, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}

	results := make([]dto.GenreResponse, 0, len(genres))
	for _, cat := range genres {
		results = append(results, dto.NewGenreResponse(cat))
	}
	return commonDto.NewPage(results, total, q), nil
}

func (s *genreService) DeleteGenre(ctx context.Context, p authz.Principal, slug string) error {
	if err := s.authz.Require(p, authz.ResourceGenre, authz.ActionDelete, uuid.Nil); err != nil {
		return err
	}

	genre, err := s.repo.FindBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("genre not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load genre: %w", err)
	}

	return s.repo.Delete(ctx, genre)
}
