package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/service/reporting"
	settingssvc "github.com/dcespedes8/avicontrol/internal/service/settings"
	usersvc "github.com/dcespedes8/avicontrol/internal/service/users"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// maxBackupBytes caps restore payload size.
const maxBackupBytes = 32 << 20

// SyncStatus is the slice of the sync session the admin API reports on.
type SyncStatus interface {
	Active() bool
}

// AdminHandler exposes user, batch, configuration, reporting and backup
// administration.
type AdminHandler struct {
	users     *usersvc.Service
	settings  *settingssvc.Service
	reporting *reporting.Service
	store     *store.Store
	syncState SyncStatus
	auth      *AuthHandler
	logger    *zap.Logger
}

// NewAdminHandler constructs the admin HTTP adapter.
func NewAdminHandler(users *usersvc.Service, settings *settingssvc.Service, reportingSvc *reporting.Service, st *store.Store, syncState SyncStatus, auth *AuthHandler, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		users:     users,
		settings:  settings,
		reporting: reportingSvc,
		store:     st,
		syncState: syncState,
		auth:      auth,
		logger:    logger,
	}
}

// requireAdmin resolves the caller and rejects non-admin roles. Config,
// backup and reset carry the whole device state (credentials included), so
// they are admin-only.
func (h *AdminHandler) requireAdmin(c *gin.Context) (models.User, bool) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return models.User{}, false
	}
	if caller.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "operation not permitted"})
		return models.User{}, false
	}
	return caller, true
}

// --- Users ---

// ListUsers returns the accounts visible to the caller.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	visible := h.users.VisibleTo(caller)
	out := make([]models.User, 0, len(visible))
	for _, u := range visible {
		out = append(out, sanitize(u))
	}
	c.JSON(http.StatusOK, out)
}

// SaveUser creates or edits an account.
func (h *AdminHandler) SaveUser(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}

	var u models.User
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user payload"})
		return
	}

	saved, err := h.users.Save(caller, u)
	if err != nil {
		h.writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, sanitize(saved))
}

// DeleteUser removes an account.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	if err := h.users.Delete(caller, c.Param("id")); err != nil {
		h.writeUserError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) writeUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usersvc.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "operation not permitted"})
	case errors.Is(err, usersvc.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("user mutation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user operation failed"})
	}
}

// --- Batches ---

// ListBatches returns every production batch.
func (h *AdminHandler) ListBatches(c *gin.Context) {
	if _, ok := h.auth.Caller(c); !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.Batches())
}

type batchRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name" binding:"required"`
	TotalCratesLimit int    `json:"totalCratesLimit"`
}

// SaveBatch creates or edits a production batch.
func (h *AdminHandler) SaveBatch(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch payload"})
		return
	}

	batch := models.Batch{
		ID:               req.ID,
		Name:             req.Name,
		TotalCratesLimit: req.TotalCratesLimit,
		CreatedBy:        caller.ID,
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
		batch.CreatedAt = time.Now().UTC()
	} else {
		for _, b := range h.store.Batches() {
			if b.ID == batch.ID {
				batch.CreatedAt = b.CreatedAt
				batch.CreatedBy = b.CreatedBy
				break
			}
		}
	}

	if err := h.store.SaveBatch(batch); err != nil {
		h.logger.Error("batch save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch save failed"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// DeleteBatch removes a production batch.
func (h *AdminHandler) DeleteBatch(c *gin.Context) {
	if _, ok := h.auth.Caller(c); !ok {
		return
	}
	if err := h.store.DeleteBatch(c.Param("id")); err != nil {
		h.logger.Error("batch delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// BatchSummary reports aggregate figures for one batch.
func (h *AdminHandler) BatchSummary(c *gin.Context) {
	if _, ok := h.auth.Caller(c); !ok {
		return
	}
	c.JSON(http.StatusOK, h.reporting.BatchSummary(c.Param("id")))
}

// --- Configuration ---

// GetConfig returns the device configuration. Admin-only: the document
// carries the remote credentials.
func (h *AdminHandler) GetConfig(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	c.JSON(http.StatusOK, h.settings.Current())
}

// SaveConfig validates and persists the device configuration. Credential
// validation failures come back as 422 with the specific reason.
func (h *AdminHandler) SaveConfig(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}

	var cfg models.AppConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid configuration payload"})
		return
	}

	if err := h.settings.Save(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.settings.Current())
}

// SyncState reports whether a remote session is live.
func (h *AdminHandler) SyncState(c *gin.Context) {
	if _, ok := h.auth.Caller(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": h.syncState.Active()})
}

// --- Backup ---

// ExportBackup streams the full device backup bundle. Admin-only: the bundle
// includes every account's credentials.
func (h *AdminHandler) ExportBackup(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}

	data, err := h.store.ExportJSON()
	if err != nil {
		h.logger.Error("backup export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backup export failed"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=avicontrol-backup.json")
	c.Data(http.StatusOK, "application/json", data)
}

// ImportBackup restores a backup bundle, all-or-nothing.
func (h *AdminHandler) ImportBackup(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBackupBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read backup payload"})
		return
	}

	if err := h.store.Restore(data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}

// Reset wipes the device and reseeds it. Remote data is untouched.
func (h *AdminHandler) Reset(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}

	if err := h.store.Reset(); err != nil {
		h.logger.Error("device reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "device reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
