package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/usecases"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type AdminHandler struct {
	scheduler *usecases.Scheduler
	ledger    *usecases.Ledger
	dashboard *usecases.DashboardUsecase
	settings  *usecases.RuntimeSettings
}

func NewAdminHandler(scheduler *usecases.Scheduler, ledger *usecases.Ledger, dashboard *usecases.DashboardUsecase, settings *usecases.RuntimeSettings) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		ledger:    ledger,
		dashboard: dashboard,
		settings:  settings,
	}
}

// GetStats returns bot statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.GetStats())
}

func (h *AdminHandler) ListAds(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.ListAds(c.Request.Context()))
}

type adContentRequest struct {
	Text     string `json:"text"`
	ImageRef string `json:"image_ref"`
	Caption  string `json:"caption"`
}

func (r *adContentRequest) content() (entities.Content, bool) {
	text := SanitizeString(r.Text)
	caption := SanitizeString(r.Caption)
	if !ValidateLength(text, 0, MaxAdTextLength) || !ValidateLength(caption, 0, MaxAdTextLength) || len(r.ImageRef) > MaxImageRefLen {
		return entities.Content{}, false
	}
	return entities.Content{Text: text, ImageRef: r.ImageRef, Caption: caption}, true
}

// CreateAd stores a new scheduled ad. It is posted on the next tick.
func (h *AdminHandler) CreateAd(c *gin.Context) {
	var payload struct {
		Name          string           `json:"name" binding:"required"`
		Kind          entities.AdKind  `json:"kind" binding:"required"`
		Content       adContentRequest `json:"content"`
		IntervalHours int              `json:"interval_hours" binding:"required"`
		TargetChats   []int64          `json:"target_chats" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	name := SanitizeString(payload.Name)
	content, ok := payload.Content.content()
	if !ok || !ValidateLength(name, 1, MaxAdNameLength) || len(payload.TargetChats) > MaxTargetChats {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ad"})
		return
	}

	id, err := h.scheduler.CreateAd(c.Request.Context(), usecases.NewAd{
		Name:          name,
		Kind:          payload.Kind,
		Content:       content,
		IntervalHours: payload.IntervalHours,
		TargetChats:   payload.TargetChats,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ad, err := h.scheduler.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ad.Summary())
}

// EditAd applies a partial update to an ad
func (h *AdminHandler) EditAd(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	var payload struct {
		Name          *string           `json:"name"`
		Content       *adContentRequest `json:"content"`
		IntervalHours *int              `json:"interval_hours"`
		TargetChats   []int64           `json:"target_chats"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	patch := usecases.AdPatch{IntervalHours: payload.IntervalHours, TargetChats: payload.TargetChats}
	if payload.Name != nil {
		name := SanitizeString(*payload.Name)
		if !ValidateLength(name, 1, MaxAdNameLength) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid name"})
			return
		}
		patch.Name = &name
	}
	if payload.Content != nil {
		content, ok := payload.Content.content()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content"})
			return
		}
		patch.Content = &content
	}
	if len(payload.TargetChats) > MaxTargetChats {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many target chats"})
		return
	}

	summary, err := h.scheduler.EditAd(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AdminHandler) PauseAd(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	if err := h.scheduler.Pause(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused", "id": id})
}

func (h *AdminHandler) ResumeAd(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	if err := h.scheduler.Resume(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed", "id": id})
}

func (h *AdminHandler) DeleteAd(c *gin.Context) {
	id, ok := adID(c)
	if !ok {
		return
	}
	if err := h.scheduler.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// RunTick runs a due cycle now instead of waiting for the ticker
func (h *AdminHandler) RunTick(c *gin.Context) {
	report := h.scheduler.Tick(c.Request.Context(), time.Now())
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) GetAccount(c *gin.Context) {
	userID := c.Param("id")
	if !ValidUserID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	acc, err := h.ledger.Account(userID)
	if err != nil {
		writeError(c, err)
		return
	}
	status, err := h.ledger.Status(userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc, "quota": status})
}

// UpdateBalance adds to or overwrites a user's balance
func (h *AdminHandler) UpdateBalance(c *gin.Context) {
	userID := c.Param("id")
	if !ValidUserID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var payload struct {
		Mode   string `json:"mode" binding:"required,oneof=add set"`
		Amount int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if payload.Amount > MaxBalanceAmount || payload.Amount < -MaxBalanceAmount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount out of range"})
		return
	}

	var (
		acc entities.UserAccount
		err error
	)
	if payload.Mode == "set" {
		acc, err = h.ledger.SetBalance(c.Request.Context(), userID, payload.Amount)
	} else {
		acc, err = h.ledger.AddBalance(c.Request.Context(), userID, payload.Amount)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	log.WithFields(log.Fields{"user_id": userID, "mode": payload.Mode, "amount": payload.Amount}).Info("Balance updated via admin API")
	c.JSON(http.StatusOK, acc)
}

func (h *AdminHandler) SetAI(c *gin.Context) {
	var payload struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.settings.SetAIEnabled(c.Request.Context(), *payload.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ai_enabled": *payload.Enabled})
}

func adID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ad ID"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to status codes
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecases.ErrAdNotFound), errors.Is(err, usecases.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrInvalidAd), errors.Is(err, usecases.ErrInvalidScheduleInterval), errors.Is(err, usecases.ErrNegativeBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithField("path", c.FullPath()).WithError(err).Error("Admin request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
