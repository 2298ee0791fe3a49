package handler

import (
	"net/http"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CommentHandler struct {
	svc *service.CommentService
	log *zap.Logger
}

type CreateCommentReq struct {
	Content string `json:"content" binding:"required,max=5000"`
}

func NewCommentHandler(svc *service.CommentService, log *zap.Logger) *CommentHandler {
	return &CommentHandler{svc: svc, log: log}
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req CreateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	comment, err := h.svc.CreateComment(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (h *CommentHandler) List(c *gin.Context) {
	list, err := h.svc.ListByPost(c.Request.Context(), c.Param("id"), queryInt(c, "page"), queryInt(c, "size"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteComment(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}
