package handler

import (
	"net/http"

	"CommunityHub/internal/middleware"
	"CommunityHub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type JournalHandler struct {
	svc *service.JournalService
	log *zap.Logger
}

type CreateJournalReq struct {
	Title   string `json:"title" binding:"max=200"`
	Content string `json:"content" binding:"required,max=10000"`
}

func NewJournalHandler(svc *service.JournalService, log *zap.Logger) *JournalHandler {
	return &JournalHandler{svc: svc, log: log}
}

func (h *JournalHandler) Create(c *gin.Context) {
	var req CreateJournalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	entry, err := h.svc.CreateEntry(c.Request.Context(), middleware.UserID(c), req.Title, req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (h *JournalHandler) List(c *gin.Context) {
	list, err := h.svc.ListEntries(c.Request.Context(), middleware.UserID(c), queryInt(c, "page"), queryInt(c, "size"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *JournalHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteEntry(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}
