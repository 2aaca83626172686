package review

import (
	"context"
	"fmt"
)

// RatingStore is the slice of the repository the aggregator needs.
type RatingStore interface {
	Scores(ctx context.Context, titleID uint) ([]int, error)
	SetTitleRating(ctx context.Context, titleID uint, rating *float64) error
}

// Mean returns the arithmetic mean of scores, or nil for none.
func Mean(scores []int) *float64 {
	if len(scores) == 0 {
		return nil
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	mean := float64(sum) / float64(len(scores))
	return &mean
}

// Recompute stores the mean of the title's current scores. Callers run it in
// the transaction that changed the scores, with the title row locked.
func Recompute(ctx context.Context, store RatingStore, titleID uint) (*float64, error) {
	scores, err := store.Scores(ctx, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}

	rating := Mean(scores)
	if err := store.SetTitleRating(ctx, titleID, rating); err != nil {
		return nil, fmt.Errorf("failed to store rating: %w", err)
	}
	return rating, nil
}
