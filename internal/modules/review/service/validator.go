package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/pkg/apperror"
)

// ValidateScore accepts integers in [entity.MinScore, entity.MaxScore].
func ValidateScore(score int) error {
	switch {
	case score < entity.MinScore:
		return apperror.NewValidationError("score", fmt.Sprintf("score must be at least %d", entity.MinScore))
	case score > entity.MaxScore:
		return apperror.NewValidationError("score", fmt.Sprintf("score must be at most %d", entity.MaxScore))
	}
	return nil
}

// ReviewLookup finds the review an author already left on a title.
type ReviewLookup interface {
	FindByTitleAndAuthor(ctx context.Context, titleID uint, authorID uuid.UUID) (*entity.Review, error)
}

// CheckUnique fails with ErrDuplicateReview when the author already has a
// review on the title other than targetID. targetID is 0 for a new review.
func CheckUnique(ctx context.Context, lookup ReviewLookup, titleID uint, authorID uuid.UUID, targetID uint) error {
	existing, err := lookup.FindByTitleAndAuthor(ctx, titleID, authorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check existing review: %w", err)
	}
	if existing.ID != targetID {
		return apperror.ErrDuplicateReview
	}
	return nil
}
