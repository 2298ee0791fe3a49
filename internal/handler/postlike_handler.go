package handler

import (
	"net/http"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PostLikeHandler struct {
	svc *service.PostLikeService
	log *zap.Logger
}

func NewPostLikeHandler(svc *service.PostLikeService, log *zap.Logger) *PostLikeHandler {
	return &PostLikeHandler{svc: svc, log: log}
}

func (h *PostLikeHandler) Like(c *gin.Context) {
	changed, err := h.svc.Like(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *PostLikeHandler) Unlike(c *gin.Context) {
	changed, err := h.svc.Unlike(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *PostLikeHandler) IsLiked(c *gin.Context) {
	liked, err := h.svc.IsLiked(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *PostLikeHandler) Count(c *gin.Context) {
	cnt, err := h.svc.GetCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": cnt})
}
