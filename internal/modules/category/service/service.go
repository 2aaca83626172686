package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/category/dto"
	"anoa.com/yamdb/internal/modules/category/repository"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/validator"
)

type CategoryService interface {
	CreateCategory(ctx context.Context, p authz.Principal, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error)
	GetAllCategories(ctx context.Context, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.CategoryResponse], error)
	DeleteCategory(ctx context.Context, p authz.Principal, slug string) error
}

type categoryService struct {
	repo  repository.CategoryRepository
	authz authz.Authorizer
}

func NewCategoryService(repo repository.CategoryRepository, authorizer authz.Authorizer) CategoryService {
	return &categoryService{repo: repo, authz: authorizer}
}

func (s *categoryService) CreateCategory(ctx context.Context, p authz.Principal, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	if err := s.authz.Require(p, authz.ResourceCategory, authz.ActionCreate, uuid.Nil); err != nil {
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
		return nil, apperror.NewValidationError("slug", "category with this slug already exists")
	}

	category := &entity.Category{Name: req.Name, Slug: slug}
	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewValidationError("slug", "category with this slug already exists")
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	res := dto.NewCategoryResponse(category)
	return &res, nil
}

func (s *categoryService) GetAllCategories(ctx context.Context, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.CategoryResponse], error) {
	q := filter.PaginationQuery.Normalize()

	categories, total, err := s.repo.FindAll(ctx, filter.Search, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	results := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		results = append(results, dto.NewCategoryResponse(cat))
	}
	return commonDto.NewPage(results, total, q), nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, p authz.Principal, slug string) error {
	if err := s.authz.Require(p, authz.ResourceCategory, authz.ActionDelete, uuid.Nil); err != nil {
		return err
	}

	category, err := s.repo.FindBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("category not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}

	return s.repo.Delete(ctx, category)
}
