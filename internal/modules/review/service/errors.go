package review

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"anoa.com/yamdb/pkg/apperror"
)

var (
	errTitleNotFound  = fmt.Errorf("title not found: %w", apperror.ErrNotFound)
	errReviewNotFound = fmt.Errorf("review not found: %w", apperror.ErrNotFound)
	errDuplicate      = apperror.ErrDuplicateReview
)

// notFound maps a missing row to target and wraps anything else.
func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return fmt.Errorf("database error: %w", err)
}

func textRequired() error {
	return apperror.NewValidationError("text", "this field may not be blank")
}

func scoreRequired() error {
	return apperror.NewValidationError("score", "this field is required")
}
