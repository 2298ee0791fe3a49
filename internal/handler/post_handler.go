package handler

import (
	"net/http"
	"time"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PostHandler struct {
	svc *service.PostService
	log *zap.Logger
}

type CreatePostReq struct {
	CommunityID string `json:"community_id" binding:"required"`
	Content     string `json:"content" binding:"required,max=10000"`
	ImageURL    string `json:"image_url" binding:"max=512"`
}

type PinReq struct {
	Pinned bool `json:"pinned"`
}

func NewPostHandler(svc *service.PostService, log *zap.Logger) *PostHandler {
	return &PostHandler{svc: svc, log: log}
}

// CreatePost 创建帖子接口
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	post, err := h.svc.CreatePost(c.Request.Context(), middleware.UserID(c), req.CommunityID, req.Content, req.ImageURL)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.svc.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// ListByCommunity cursor=1 或带 last_created_at 时走游标分页，否则按页码
func (h *PostHandler) ListByCommunity(c *gin.Context) {
	communityID := c.Param("id")
	size := queryInt(c, "size")

	lastTS := c.Query("last_created_at")
	if lastTS != "" || c.Query("cursor") != "" {
		var cur service.Cursor
		if lastTS != "" {
			ts, err := time.Parse(time.RFC3339Nano, lastTS)
			if err != nil {
				badRequest(c, "invalid last_created_at")
				return
			}
			cur = service.Cursor{LastID: c.Query("last_id"), LastCreatedAt: ts}
		}
		list, next, err := h.svc.ListByCommunityCursor(c.Request.Context(), communityID, cur, size)
		if err != nil {
			fail(c, h.log, err)
			return
		}
		body := gin.H{"list": list, "next_last_id": next.LastID}
		if !next.LastCreatedAt.IsZero() {
			body["next_last_created_at"] = next.LastCreatedAt.Format(time.RFC3339Nano)
		}
		c.JSON(http.StatusOK, body)
		return
	}

	page := queryInt(c, "page")
	list, err := h.svc.ListByCommunity(c.Request.Context(), communityID, page, size)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "page": page, "size": size})
}

// DeletePost 删除帖子接口，重复删除返回成功
func (h *PostHandler) DeletePost(c *gin.Context) {
	if err := h.svc.DeletePost(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

func (h *PostHandler) Pin(c *gin.Context) {
	var req PinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	if err := h.svc.SetPinned(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Pinned); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": req.Pinned})
}
