package dto

import "anoa.com/yamdb/internal/entity"

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,max=256"`
	Slug string `json:"slug" binding:"omitempty,max=50,slug"`
}

type CategoryResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func NewCategoryResponse(c *entity.Category) CategoryResponse {
	return CategoryResponse{Name: c.Name, Slug: c.Slug}
}
