package comment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/comment/dto"
	"anoa.com/yamdb/internal/modules/comment/repository"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/ratelimiter"
)

var (
	errReviewNotFound  = fmt.Errorf("review not found: %w", apperror.ErrNotFound)
	errCommentNotFound = fmt.Errorf("comment not found: %w", apperror.ErrNotFound)
)

func textRequired() error {
	return apperror.NewValidationError("text", "this field may not be blank")
}

type Limiter interface {
	Acquire(ctx context.Context, subject string, scope ratelimiter.Scope) (func(), error)
}

type CommentService interface {
	ListComments(ctx context.Context, titleID, reviewID uint, q commonDto.PaginationQuery) (*commonDto.PaginatedResponse[dto.CommentResponse], error)
	GetComment(ctx context.Context, titleID, reviewID, commentID uint) (*dto.CommentResponse, error)
	CreateComment(ctx context.Context, p authz.Principal, titleID, reviewID uint, req dto.CreateCommentRequest) (*dto.CommentResponse, error)
	UpdateComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID uint, req dto.UpdateCommentRequest) (*dto.CommentResponse, error)
	DeleteComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID uint) error
}

type commentService struct {
	repo    repository.CommentRepository
	authz   authz.Authorizer
	limiter Limiter
}

func NewCommentService(repo repository.CommentRepository, authorizer authz.Authorizer, limiter Limiter) CommentService {
	return &commentService{repo: repo, authz: authorizer, limiter: limiter}
}

// resolveReview checks the review exists under the title from the route.
func (s *commentService) resolveReview(ctx context.Context, titleID, reviewID uint) error {
	ok, err := s.repo.ReviewExists(ctx, titleID, reviewID)
	if err != nil {
		return fmt.Errorf("failed to load review: %w", err)
	}
	if !ok {
		return errReviewNotFound
	}
	return nil
}

func (s *commentService) find(ctx context.Context, titleID, reviewID, commentID uint) (*entity.Comment, error) {
	if err := s.resolveReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	comment, err := s.repo.FindByID(ctx, reviewID, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	return comment, nil
}

func (s *commentService) ListComments(ctx context.Context, titleID, reviewID uint, q commonDto.PaginationQuery) (*commonDto.PaginatedResponse[dto.CommentResponse], error) {
	if err := s.resolveReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}

	q = q.Normalize()
	comments, total, err := s.repo.FindByReview(ctx, reviewID, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	results := make([]dto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		results = append(results, dto.NewCommentResponse(c))
	}
	return commonDto.NewPage(results, total, q), nil
}

func (s *commentService) GetComment(ctx context.Context, titleID, reviewID, commentID uint) (*dto.CommentResponse, error) {
	comment, err := s.find(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	res := dto.NewCommentResponse(comment)
	return &res, nil
}

func (s *commentService) CreateComment(ctx context.Context, p authz.Principal, titleID, reviewID uint, req dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if err := s.authz.Require(p, authz.ResourceComment, authz.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	release, err := s.limiter.Acquire(ctx, p.UserID.String(), ratelimiter.ScopeComment)
	if err != nil {
		return nil, err
	}

	if err := s.resolveReview(ctx, titleID, reviewID); err != nil {
		release()
		return nil, err
	}
	if req.Text == "" {
		release()
		return nil, textRequired()
	}

	comment := &entity.Comment{
		ReviewID: reviewID,
		AuthorID: p.UserID,
		Text:     req.Text,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		release()
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	comment.Author = entity.User{ID: p.UserID, Username: p.Username}
	res := dto.NewCommentResponse(comment)
	return &res, nil
}

func (s *commentService) UpdateComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID uint, req dto.UpdateCommentRequest) (*dto.CommentResponse, error) {
	comment, err := s.find(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}

	if err := s.authz.Require(p, authz.ResourceComment, authz.ActionUpdate, comment.AuthorID); err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, textRequired()
	}

	comment.Text = req.Text
	if err := s.repo.Update(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	res := dto.NewCommentResponse(comment)
	return &res, nil
}

func (s *commentService) DeleteComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID uint) error {
	comment, err := s.find(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}

	if err := s.authz.Require(p, authz.ResourceComment, authz.ActionDelete, comment.AuthorID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}
