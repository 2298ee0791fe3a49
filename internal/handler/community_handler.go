package handler

import (
	"net/http"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CommunityHandler struct {
	svc     *service.CommunityService
	members *service.MembershipService
	log     *zap.Logger
}

type CommunityCreateReq struct {
	Name         string `json:"name" binding:"required,max=64"`
	Description  string `json:"description" binding:"max=2000"`
	ImageURL     string `json:"image_url" binding:"max=512"`
	PriceInCents int64  `json:"price_in_cents" binding:"gte=0"`
	IsPublic     *bool  `json:"is_public"`
}

func NewCommunityHandler(svc *service.CommunityService, members *service.MembershipService, log *zap.Logger) *CommunityHandler {
	return &CommunityHandler{svc: svc, members: members, log: log}
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req CommunityCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	community, err := h.svc.CreateCommunity(c.Request.Context(), middleware.UserID(c), service.CreateCommunityInput{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		PriceInCents: req.PriceInCents,
		IsPublic:     isPublic,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"community": community})
}

func (h *CommunityHandler) Get(c *gin.Context) {
	community, err := h.svc.GetCommunity(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	count, err := h.svc.CountMembers(c.Request.Context(), community.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"community": community, "member_count": count})
}

// List 支持 q 关键字与 price=all|free|paid 过滤
func (h *CommunityHandler) List(c *gin.Context) {
	list, err := h.svc.ListCommunities(c.Request.Context(), service.ListCommunitiesInput{
		Query: c.Query("q"),
		Price: c.Query("price"),
		Page:  queryInt(c, "page"),
		Size:  queryInt(c, "size"),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *CommunityHandler) Joined(c *gin.Context) {
	list, err := h.svc.ListJoined(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *CommunityHandler) Members(c *gin.Context) {
	page, size := queryInt(c, "page"), queryInt(c, "size")
	list, err := h.svc.ListMembers(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

// Join 免费社区直接加入；付费社区需走 /api/membership/checkout
func (h *CommunityHandler) Join(c *gin.Context) {
	m, err := h.members.JoinFree(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"membership": m})
}

func (h *CommunityHandler) Leave(c *gin.Context) {
	if err := h.members.Leave(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *CommunityHandler) Leaderboard(c *gin.Context) {
	list, err := h.svc.Leaderboard(c.Request.Context(), middleware.UserID(c), c.Param("id"), queryInt(c, "limit"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
