package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) setupTwoFactor(c *gin.Context) {
	id, _ := caller(c)
	setup, err := h.engine.SetupTwoFactor(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, twoFactorSetupResponse{Secret: setup.Secret, URI: setup.URI, QRCode: setup.QRCode})
}

func (h *Handler) enableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	id, _ := caller(c)
	codes, err := h.engine.EnableTwoFactor(c.Request.Context(), id, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (h *Handler) disableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	id, _ := caller(c)
	if err := h.engine.DisableTwoFactor(c.Request.Context(), id, req.Code); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) regenerateBackupCodes(c *gin.Context) {
	id, _ := caller(c)
	codes, err := h.engine.RegenerateBackupCodes(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (h *Handler) remainingBackupCodes(c *gin.Context) {
	id, _ := caller(c)
	n, err := h.engine.RemainingBackupCodes(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, remainingResponse{Remaining: n})
}
