package dto

import (
	"anoa.com/yamdb/internal/entity"
	categoryDto "anoa.com/yamdb/internal/modules/category/dto"
	genreDto "anoa.com/yamdb/internal/modules/genre/dto"
	commonDto "anoa.com/yamdb/pkg/dto"
)

type TitleFilter struct {
	Category string `form:"category"`
	Genre    string `form:"genre"`
	Name     string `form:"name"`
	Year     *int   `form:"year"`
	commonDto.PaginationQuery
}

type SearchQuery struct {
	Q string `form:"q" binding:"required"`
	commonDto.PaginationQuery
}

type CreateTitleRequest struct {
	Name        string   `json:"name" binding:"required,max=256"`
	Year        *int     `json:"year" binding:"required"`
	Description string   `json:"description"`
	Genre       []string `json:"genre" binding:"required,min=1,dive,required"`
	Category    *string  `json:"category"`
}

// UpdateTitleRequest is a partial update. An empty category clears it.
type UpdateTitleRequest struct {
	Name        *string   `json:"name" binding:"omitempty,min=1,max=256"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Genre       *[]string `json:"genre" binding:"omitempty,dive,required"`
	Category    *string   `json:"category"`
}

type TitleResponse struct {
	ID          uint                          `json:"id"`
	Name        string                        `json:"name"`
	Year        int                           `json:"year"`
	Rating      *float64                      `json:"rating"`
	Description string                        `json:"description"`
	Genre       []genreDto.GenreResponse      `json:"genre"`
	Category    *categoryDto.CategoryResponse `json:"category"`
	CoverURL    *string                       `json:"cover_url"`
}

func NewTitleResponse(t *entity.Title) TitleResponse {
	res := TitleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Rating:      t.Rating,
		Description: t.Description,
		Genre:       make([]genreDto.GenreResponse, 0, len(t.Genres)),
		CoverURL:    t.CoverURL,
	}
	for i := range t.Genres {
		res.Genre = append(res.Genre, genreDto.NewGenreResponse(&t.Genres[i]))
	}
	if t.Category != nil {
		c := categoryDto.NewCategoryResponse(t.Category)
		res.Category = &c
	}
	return res
}
