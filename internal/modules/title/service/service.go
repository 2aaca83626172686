package title

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/internal/modules/title/dto"
	"anoa.com/yamdb/internal/modules/title/repository"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/storage"
)

var errTitleNotFound = fmt.Errorf("title not found: %w", apperror.ErrNotFound)

// SearchIndex is the full-text index kept in step with title writes.
type SearchIndex interface {
	IndexTitle(ctx context.Context, title *entity.Title) error
	DeleteTitle(ctx context.Context, id uint) error
	SearchTitles(ctx context.Context, query string, offset, limit int) ([]uint, int64, error)
}

type TitleService interface {
	ListTitles(ctx context.Context, filter dto.TitleFilter) (*commonDto.PaginatedResponse[dto.TitleResponse], error)
	SearchTitles(ctx context.Context, q dto.SearchQuery) (*commonDto.PaginatedResponse[dto.TitleResponse], error)
	GetTitle(ctx context.Context, id uint) (*dto.TitleResponse, error)
	CreateTitle(ctx context.Context, p authz.Principal, req dto.CreateTitleRequest) (*dto.TitleResponse, error)
	UpdateTitle(ctx context.Context, p authz.Principal, id uint, req dto.UpdateTitleRequest) (*dto.TitleResponse, error)
	DeleteTitle(ctx context.Context, p authz.Principal, id uint) error
	UploadCover(ctx context.Context, p authz.Principal, id uint, r io.Reader, fileName string) (*dto.TitleResponse, error)
}

type titleService struct {
	repo        repository.TitleRepository
	authz       authz.Authorizer
	index       SearchIndex
	images      storage.ImageStorage
	coverFolder string
	now         func() time.Time
}

// NewTitleService wires the title use cases. index and images may be nil.
func NewTitleService(repo repository.TitleRepository, authorizer authz.Authorizer, index SearchIndex, images storage.ImageStorage, coverFolder string) TitleService {
	return &titleService{
		repo:        repo,
		authz:       authorizer,
		index:       index,
		images:      images,
		coverFolder: coverFolder,
		now:         time.Now,
	}
}

func (s *titleService) ListTitles(ctx context.Context, filter dto.TitleFilter) (*commonDto.PaginatedResponse[dto.TitleResponse], error) {
	q := filter.PaginationQuery.Normalize()

	titles, total, err := s.repo.FindAll(ctx, repository.TitleQuery{
		CategorySlug: filter.Category,
		GenreSlug:    filter.Genre,
		Name:         filter.Name,
		Year:         filter.Year,
	}, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}

	return commonDto.NewPage(toResponses(titles), total, q), nil
}

// SearchTitles queries the search index and falls back to a name match
// when the index is missing or failing.
func (s *titleService) SearchTitles(ctx context.Context, sq dto.SearchQuery) (*commonDto.PaginatedResponse[dto.TitleResponse], error) {
	q := sq.PaginationQuery.Normalize()

	if s.index != nil {
		ids, total, err := s.index.SearchTitles(ctx, sq.Q, q.Offset, q.Limit)
		if err == nil {
			titles, err := s.repo.FindByIDs(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("failed to load search hits: %w", err)
			}
			return commonDto.NewPage(toResponses(inHitOrder(titles, ids)), total, q), nil
		}
		logging.Warn().Err(err).Str("query", sq.Q).Msg("search index unavailable, falling back to database")
	}

	return s.ListTitles(ctx, dto.TitleFilter{Name: sq.Q, PaginationQuery: q})
}

func (s *titleService) GetTitle(ctx context.Context, id uint) (*dto.TitleResponse, error) {
	title, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res := dto.NewTitleResponse(title)
	return &res, nil
}

func (s *titleService) CreateTitle(ctx context.Context, p authz.Principal, req dto.CreateTitleRequest) (*dto.TitleResponse, error) {
	if err := s.authz.Require(p, authz.ResourceTitle, authz.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	vErr := &apperror.ValidationError{}
	title := &entity.Title{
		Name:        req.Name,
		Description: req.Description,
	}

	if req.Year == nil {
		vErr.Add("year", "this field is required")
	} else if msg := s.checkYear(*req.Year); msg != "" {
		vErr.Add("year", msg)
	} else {
		title.Year = *req.Year
	}

	if len(dedupe(req.Genre)) == 0 {
		vErr.Add("genre", "at least one genre is required")
	} else {
		genres, err := s.resolveGenres(ctx, req.Genre, vErr)
		if err != nil {
			return nil, err
		}
		title.Genres = genres
	}

	if req.Category != nil && *req.Category != "" {
		category, err := s.resolveCategory(ctx, *req.Category, vErr)
		if err != nil {
			return nil, err
		}
		if category != nil {
			title.CategoryID = &category.ID
		}
	}

	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := s.repo.Create(ctx, title); err != nil {
		return nil, fmt.Errorf("failed to create title: %w", err)
	}

	return s.afterWrite(ctx, title.ID)
}

func (s *titleService) UpdateTitle(ctx context.Context, p authz.Principal, id uint, req dto.UpdateTitleRequest) (*dto.TitleResponse, error) {
	if err := s.authz.Require(p, authz.ResourceTitle, authz.ActionUpdate, uuid.Nil); err != nil {
		return nil, err
	}

	title, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	vErr := &apperror.ValidationError{}
	columns := map[string]interface{}{}

	if req.Name != nil {
		columns["name"] = *req.Name
	}
	if req.Description != nil {
		columns["description"] = *req.Description
	}
	if req.Year != nil {
		if msg := s.checkYear(*req.Year); msg != "" {
			vErr.Add("year", msg)
		} else {
			columns["year"] = *req.Year
		}
	}
	if req.Category != nil {
		if *req.Category == "" {
			columns["category_id"] = nil
		} else {
			category, err := s.resolveCategory(ctx, *req.Category, vErr)
			if err != nil {
				return nil, err
			}
			if category != nil {
				columns["category_id"] = category.ID
			}
		}
	}

	var genres []entity.Genre
	if req.Genre != nil {
		if genres, err = s.resolveGenres(ctx, *req.Genre, vErr); err != nil {
			return nil, err
		}
	}

	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := s.repo.Update(ctx, title, columns, genres); err != nil {
		return nil, fmt.Errorf("failed to update title: %w", err)
	}

	return s.afterWrite(ctx, title.ID)
}

func (s *titleService) DeleteTitle(ctx context.Context, p authz.Principal, id uint) error {
	if err := s.authz.Require(p, authz.ResourceTitle, authz.ActionDelete, uuid.Nil); err != nil {
		return err
	}

	title, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errTitleNotFound
		}
		return fmt.Errorf("failed to delete title: %w", err)
	}

	if s.index != nil {
		if err := s.index.DeleteTitle(ctx, id); err != nil {
			logging.Warn().Err(err).Uint("title_id", id).Msg("failed to remove title from search index")
		}
	}
	if title.CoverURL != nil && s.images != nil {
		s.dropImage(ctx, *title.CoverURL)
	}
	return nil
}

func (s *titleService) UploadCover(ctx context.Context, p authz.Principal, id uint, r io.Reader, fileName string) (*dto.TitleResponse, error) {
	if err := s.authz.Require(p, authz.ResourceTitle, authz.ActionUpdate, uuid.Nil); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured: %w", apperror.ErrUnavailable)
	}

	title, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.UploadImage(ctx, r, path.Join(s.coverFolder, "covers"), fmt.Sprintf("%d-%s", id, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to upload cover: %w", err)
	}

	if err := s.repo.UpdateCover(ctx, id, url); err != nil {
		s.dropImage(ctx, url)
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}

	if title.CoverURL != nil {
		s.dropImage(ctx, *title.CoverURL)
	}

	return s.afterWrite(ctx, id)
}

func (s *titleService) load(ctx context.Context, id uint) (*entity.Title, error) {
	title, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load title: %w", err)
	}
	return title, nil
}

// afterWrite reloads the title, pushes it to the search index and renders it.
func (s *titleService) afterWrite(ctx context.Context, id uint) (*dto.TitleResponse, error) {
	title, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.IndexTitle(ctx, title); err != nil {
			logging.Warn().Err(err).Uint("title_id", id).Msg("failed to index title")
		}
	}

	res := dto.NewTitleResponse(title)
	return &res, nil
}

func (s *titleService) dropImage(ctx context.Context, url string) {
	if err := s.images.DeleteImage(ctx, url); err != nil {
		logging.Warn().Err(err).Str("url", url).Msg("failed to delete image")
	}
}

func (s *titleService) checkYear(year int) string {
	switch current := s.now().Year(); {
	case year < 1:
		return "year must be at least 1"
	case year > current:
		return fmt.Sprintf("year cannot be later than %d", current)
	}
	return ""
}

func (s *titleService) resolveCategory(ctx context.Context, slug string, vErr *apperror.ValidationError) (*entity.Category, error) {
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		vErr.Add("category", fmt.Sprintf("category %q does not exist", slug))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return category, nil
}

func (s *titleService) resolveGenres(ctx context.Context, slugs []string, vErr *apperror.ValidationError) ([]entity.Genre, error) {
	unique := dedupe(slugs)
	if len(unique) == 0 {
		return []entity.Genre{}, nil
	}

	genres, err := s.repo.FindGenresBySlugs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load genres: %w", err)
	}

	if len(genres) != len(unique) {
		found := make(map[string]bool, len(genres))
		for _, g := range genres {
			found[g.Slug] = true
		}
		var missing []string
		for _, slug := range unique {
			if !found[slug] {
				missing = append(missing, slug)
			}
		}
		vErr.Add("genre", "unknown genre: "+strings.Join(missing, ", "))
		return nil, nil
	}
	return genres, nil
}

func dedupe(slugs []string) []string {
	seen := make(map[string]bool, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func inHitOrder(titles []*entity.Title, ids []uint) []*entity.Title {
	byID := make(map[uint]*entity.Title, len(titles))
	for _, t := range titles {
		byID[t.ID] = t
	}
	ordered := make([]*entity.Title, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

func toResponses(titles []*entity.Title) []dto.TitleResponse {
	results := make([]dto.TitleResponse, 0, len(titles))
	for _, t := range titles {
		results = append(results, dto.NewTitleResponse(t))
	}
	return results
}
