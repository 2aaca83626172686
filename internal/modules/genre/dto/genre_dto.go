package dto

import "anoa.com/yamdb/internal/entity"

type CreateGenreRequest struct {
	Name string `json:"name" binding:"required,max=256"`
	Slug string `json:"slug" binding:"omitempty,max=50,slug"`
}

type GenreResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func NewGenreResponse(c *entity.Genre) GenreResponse {
	return GenreResponse{Name: c.Name, Slug: c.Slug}
}
