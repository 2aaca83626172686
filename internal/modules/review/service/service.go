package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/internal/modules/review/dto"
	"anoa.com/yamdb/internal/modules/review/repository"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/ratelimiter"
)

// RatingListener is told about a title's new rating once the change is committed.
type RatingListener interface {
	OnRatingChanged(ctx context.Context, titleID uint, rating *float64) error
}

// Limiter throttles review creation per author.
type Limiter interface {
	Acquire(ctx context.Context, subject string, scope ratelimiter.Scope) (func(), error)
}

type ReviewService interface {
	ListReviews(ctx context.Context, titleID uint, q commonDto.PaginationQuery) (*commonDto.PaginatedResponse[dto.ReviewResponse], error)
	GetReview(ctx context.Context, titleID, reviewID uint) (*dto.ReviewResponse, error)
	CreateReview(ctx context.Context, p authz.Principal, titleID uint, req dto.CreateReviewRequest) (*dto.ReviewResponse, error)
	UpdateReview(ctx context.Context, p authz.Principal, titleID, reviewID uint, req dto.UpdateReviewRequest) (*dto.ReviewResponse, error)
	DeleteReview(ctx context.Context, p authz.Principal, titleID, reviewID uint) error
}

type reviewService struct {
	repo      repository.ReviewRepository
	authz     authz.Authorizer
	limiter   Limiter
	listeners []RatingListener
}

func NewReviewService(repo repository.ReviewRepository, authorizer authz.Authorizer, limiter Limiter, listeners ...RatingListener) ReviewService {
	return &reviewService{
		repo:      repo,
		authz:     authorizer,
		limiter:   limiter,
		listeners: listeners,
	}
}

func (s *reviewService) ListReviews(ctx context.Context, titleID uint, q commonDto.PaginationQuery) (*commonDto.PaginatedResponse[dto.ReviewResponse], error) {
	exists, err := s.repo.TitleExists(ctx, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load title: %w", err)
	}
	if !exists {
		return nil, errTitleNotFound
	}

	q = q.Normalize()
	reviews, total, err := s.repo.FindByTitle(ctx, titleID, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	results := make([]dto.ReviewResponse, 0, len(reviews))
	for _, r := range reviews {
		results = append(results, dto.NewReviewResponse(r))
	}
	return commonDto.NewPage(results, total, q), nil
}

func (s *reviewService) GetReview(ctx context.Context, titleID, reviewID uint) (*dto.ReviewResponse, error) {
	review, err := s.repo.FindByID(ctx, titleID, reviewID)
	if err != nil {
		return nil, notFound(err, errReviewNotFound)
	}
	res := dto.NewReviewResponse(review)
	return &res, nil
}

func (s *reviewService) CreateReview(ctx context.Context, p authz.Principal, titleID uint, req dto.CreateReviewRequest) (*dto.ReviewResponse, error) {
	if err := s.authz.Require(p, authz.ResourceReview, authz.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	release, err := s.limiter.Acquire(ctx, p.UserID.String(), ratelimiter.ScopeReview)
	if err != nil {
		return nil, err
	}

	review := &entity.Review{
		TitleID:  titleID,
		AuthorID: p.UserID,
		Text:     req.Text,
	}
	if req.Score != nil {
		review.Score = *req.Score
	}

	var rating *float64
	err = s.repo.WithinTransaction(ctx, func(tx repository.ReviewRepository) error {
		if _, err := tx.LockTitle(ctx, titleID); err != nil {
			return notFound(err, errTitleNotFound)
		}
		if req.Text == "" {
			return textRequired()
		}
		if req.Score == nil {
			return scoreRequired()
		}
		if err := ValidateScore(review.Score); err != nil {
			return err
		}
		if err := CheckUnique(ctx, tx, titleID, p.UserID, 0); err != nil {
			return err
		}
		if err := tx.Create(ctx, review); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicate
			}
			return fmt.Errorf("failed to create review: %w", err)
		}

		r, err := Recompute(ctx, tx, titleID)
		rating = r
		return err
	})
	if err != nil {
		release()
		return nil, err
	}

	s.notify(ctx, titleID, rating)

	review.Author = entity.User{ID: p.UserID, Username: p.Username}
	res := dto.NewReviewResponse(review)
	return &res, nil
}

func (s *reviewService) UpdateReview(ctx context.Context, p authz.Principal, titleID, reviewID uint, req dto.UpdateReviewRequest) (*dto.ReviewResponse, error) {
	var (
		review *entity.Review
		rating *float64
	)
	err := s.repo.WithinTransaction(ctx, func(tx repository.ReviewRepository) error {
		if _, err := tx.LockTitle(ctx, titleID); err != nil {
			return notFound(err, errTitleNotFound)
		}

		var err error
		review, err = tx.FindByID(ctx, titleID, reviewID)
		if err != nil {
			return notFound(err, errReviewNotFound)
		}

		if err := s.authz.Require(p, authz.ResourceReview, authz.ActionUpdate, review.AuthorID); err != nil {
			return err
		}

		if req.Text != nil {
			if *req.Text == "" {
				return textRequired()
			}
			review.Text = *req.Text
		}
		if req.Score != nil {
			if err := ValidateScore(*req.Score); err != nil {
				return err
			}
			review.Score = *req.Score
		}

		if err := CheckUnique(ctx, tx, titleID, review.AuthorID, review.ID); err != nil {
			return err
		}
		if err := tx.Update(ctx, review); err != nil {
			return fmt.Errorf("failed to update review: %w", err)
		}

		rating, err = Recompute(ctx, tx, titleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, titleID, rating)

	res := dto.NewReviewResponse(review)
	return &res, nil
}

func (s *reviewService) DeleteReview(ctx context.Context, p authz.Principal, titleID, reviewID uint) error {
	var rating *float64
	err := s.repo.WithinTransaction(ctx, func(tx repository.ReviewRepository) error {
		if _, err := tx.LockTitle(ctx, titleID); err != nil {
			return notFound(err, errTitleNotFound)
		}

		review, err := tx.FindByID(ctx, titleID, reviewID)
		if err != nil {
			return notFound(err, errReviewNotFound)
		}

		if err := s.authz.Require(p, authz.ResourceReview, authz.ActionDelete, review.AuthorID); err != nil {
			return err
		}

		if err := tx.Delete(ctx, review); err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}

		rating, err = Recompute(ctx, tx, titleID)
		return err
	})
	if err != nil {
		return err
	}

	s.notify(ctx, titleID, rating)
	return nil
}

// notify runs after commit; listener failures are logged and otherwise ignored.
func (s *reviewService) notify(ctx context.Context, titleID uint, rating *float64) {
	for _, l := range s.listeners {
		if err := l.OnRatingChanged(ctx, titleID, rating); err != nil {
			logging.Warn().Err(err).Uint("title_id", titleID).Msg("rating listener failed")
		}
	}
}
