package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"anoa.com/yamdb/internal/modules/title/dto"
	title "anoa.com/yamdb/internal/modules/title/service"
	"anoa.com/yamdb/pkg/apperror"
	"anoa.com/yamdb/pkg/response"
)

// MaxCoverSize caps cover uploads.
const MaxCoverSize = 5 << 20

var coverExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

type TitleHandler struct {
	service title.TitleService
}

func NewTitleHandler(service title.TitleService) *TitleHandler {
	return &TitleHandler{service: service}
}

func (h *TitleHandler) ListTitles(c *gin.Context) {
	var filter dto.TitleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	page, err := h.service.ListTitles(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *TitleHandler) SearchTitles(c *gin.Context) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	page, err := h.service.SearchTitles(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *TitleHandler) GetTitle(c *gin.Context) {
	id, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.GetTitle(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TitleHandler) CreateTitle(c *gin.Context) {
	var req dto.CreateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.CreateTitle(c.Request.Context(), response.GetPrincipal(c), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *TitleHandler) UpdateTitle(c *gin.Context) {
	id, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.UpdateTitle(c.Request.Context(), response.GetPrincipal(c), id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TitleHandler) DeleteTitle(c *gin.Context) {
	id, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteTitle(c.Request.Context(), response.GetPrincipal(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TitleHandler) UploadCover(c *gin.Context) {
	id, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	file, err := c.FormFile("cover")
	if err != nil {
		response.ResponseError(c, apperror.NewValidationError("cover", "this field is required"))
		return
	}
	if file.Size > MaxCoverSize {
		response.ResponseError(c, apperror.NewValidationError("cover", fmt.Sprintf("file must be at most %d MB", MaxCoverSize>>20)))
		return
	}
	if !coverExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		response.ResponseError(c, apperror.NewValidationError("cover", "unsupported image type"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.ResponseError(c, fmt.Errorf("failed to read upload: %w", apperror.ErrBadRequest))
		return
	}
	defer src.Close()

	res, err := h.service.UploadCover(c.Request.Context(), response.GetPrincipal(c), id, src, filepath.Base(file.Filename))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
