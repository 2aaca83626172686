package dto

import (
	"time"

	"anoa.com/yamdb/internal/entity"
)

// CreateReviewRequest presence checks run in the service once the caller
// is authorized.
type CreateReviewRequest struct {
	Text  string `json:"text"`
	Score *int   `json:"score"`
}

// UpdateReviewRequest is a partial update; nil fields are left untouched.
type UpdateReviewRequest struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

type ReviewResponse struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

func NewReviewResponse(r *entity.Review) ReviewResponse {
	return ReviewResponse{
		ID:      r.ID,
		Text:    r.Text,
		Author:  r.Author.Username,
		Score:   r.Score,
		PubDate: r.PubDate,
	}
}
