package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"anoa.com/yamdb/internal/modules/comment/dto"
	comment "anoa.com/yamdb/internal/modules/comment/service"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/response"
)

type CommentHandler struct {
	service comment.CommentService
}

func NewCommentHandler(service comment.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

type routeIDs struct {
	title, review, comment uint
}

// parseIDs reads title_id, review_id and, when withComment is set, comment_id.
func parseIDs(c *gin.Context, withComment bool) (routeIDs, bool) {
	var ids routeIDs
	var err error

	if ids.title, err = response.ParamID(c, "title_id"); err != nil {
		response.ResponseError(c, err)
		return ids, false
	}
	if ids.review, err = response.ParamID(c, "review_id"); err != nil {
		response.ResponseError(c, err)
		return ids, false
	}
	if withComment {
		if ids.comment, err = response.ParamID(c, "comment_id"); err != nil {
			response.ResponseError(c, err)
			return ids, false
		}
	}
	return ids, true
}

func (h *CommentHandler) ListComments(c *gin.Context) {
	ids, ok := parseIDs(c, false)
	if !ok {
		return
	}

	var q commonDto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	page, err := h.service.ListComments(c.Request.Context(), ids.title, ids.review, q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *CommentHandler) GetComment(c *gin.Context) {
	ids, ok := parseIDs(c, true)
	if !ok {
		return
	}

	res, err := h.service.GetComment(c.Request.Context(), ids.title, ids.review, ids.comment)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	ids, ok := parseIDs(c, false)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.CreateComment(c.Request.Context(), response.GetPrincipal(c), ids.title, ids.review, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	ids, ok := parseIDs(c, true)
	if !ok {
		return
	}

	var req dto.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.UpdateComment(c.Request.Context(), response.GetPrincipal(c), ids.title, ids.review, ids.comment, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	ids, ok := parseIDs(c, true)
	if !ok {
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), response.GetPrincipal(c), ids.title, ids.review, ids.comment); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
