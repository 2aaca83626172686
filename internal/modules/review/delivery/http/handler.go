package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"anoa.com/yamdb/internal/modules/review/dto"
	review "anoa.com/yamdb/internal/modules/review/service"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/response"
)

type ReviewHandler struct {
	service review.ReviewService
}

func NewReviewHandler(service review.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	titleID, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var q commonDto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	page, err := h.service.ListReviews(c.Request.Context(), titleID, q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ReviewHandler) GetReview(c *gin.Context) {
	titleID, reviewID, ok := ids(c)
	if !ok {
		return
	}

	res, err := h.service.GetReview(c.Request.Context(), titleID, reviewID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReviewHandler) CreateReview(c *gin.Context) {
	titleID, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.CreateReview(c.Request.Context(), response.GetPrincipal(c), titleID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	titleID, reviewID, ok := ids(c)
	if !ok {
		return
	}

	var req dto.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.UpdateReview(c.Request.Context(), response.GetPrincipal(c), titleID, reviewID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	titleID, reviewID, ok := ids(c)
	if !ok {
		return
	}

	if err := h.service.DeleteReview(c.Request.Context(), response.GetPrincipal(c), titleID, reviewID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func ids(c *gin.Context) (uint, uint, bool) {
	titleID, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return 0, 0, false
	}
	reviewID, err := response.ParamID(c, "review_id")
	if err != nil {
		response.ResponseError(c, err)
		return 0, 0, false
	}
	return titleID, reviewID, true
}
