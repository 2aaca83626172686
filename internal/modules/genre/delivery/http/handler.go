package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"anoa.com/yamdb/internal/modules/genre/dto"
	genre "anoa.com/yamdb/internal/modules/genre/service"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/response"
)

type GenreHandler struct {
	service genre.GenreService
}

func NewGenreHandler(service genre.GenreService) *GenreHandler {
	return &GenreHandler{service: service}
}

func (h *GenreHandler) CreateGenre(c *gin.Context) {
	var req dto.CreateGenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.CreateGenre(c.Request.Context(), response.GetPrincipal(c), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *GenreHandler) GetAllGenres(c *gin.Context) {
	var filter commonDto.SearchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	genres, err := h.service.GetAllGenres(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, genres)
}

func (h *GenreHandler) DeleteGenre(c *gin.Context) {
	if err := h.service.DeleteGenre(c.Request.Context(), response.GetPrincipal(c), c.Param("slug")); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
