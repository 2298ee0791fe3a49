package handler

import (
	"net/http"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MembershipHandler struct {
	svc *service.MembershipService
	log *zap.Logger
}

type CheckoutReq struct {
	CommunityID string `json:"community_id" binding:"required"`
}

type ConfirmReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

func NewMembershipHandler(svc *service.MembershipService, log *zap.Logger) *MembershipHandler {
	return &MembershipHandler{svc: svc, log: log}
}

// Checkout 创建嵌入式订阅 checkout，返回 client secret
func (h *MembershipHandler) Checkout(c *gin.Context) {
	var req CheckoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "community_id required")
		return
	}
	secret, err := h.svc.StartCheckout(c.Request.Context(), middleware.UserID(c), req.CommunityID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_secret": secret})
}

// Confirm 支付完成后客户端同步确认
func (h *MembershipHandler) Confirm(c *gin.Context) {
	var req ConfirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "session_id required")
		return
	}
	res, err := h.svc.ConfirmCheckout(c.Request.Context(), middleware.UserID(c), req.SessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *MembershipHandler) State(c *gin.Context) {
	state, err := h.svc.State(c.Request.Context(), middleware.UserID(c), c.Param("community_id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
