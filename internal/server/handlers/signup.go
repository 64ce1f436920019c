package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/application/reconciler"
	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

type SignupHandler struct {
	reconciliationService reconciler.IReconciliationService
	logger                zerolog.Logger
}

func NewSignupHandler(reconciliationService reconciler.IReconciliationService, logger zerolog.Logger) *SignupHandler {
	return &SignupHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

func (h *SignupHandler) RecordSignup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	result, err := h.reconciliationService.RecordSignup(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "Failed to record signup")
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *SignupHandler) GetSignup(c *gin.Context) {
	rec, err := h.reconciliationService.GetRecord(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err, "Failed to get signup record")
		return
	}

	c.JSON(http.StatusOK, rec)
}

type attachWalletRequest struct {
	SenderWallet string `json:"sender_wallet" binding:"required"`
}

func (h *SignupHandler) AttachWallet(c *gin.Context) {
	var req attachWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	if err := h.reconciliationService.AttachSenderWallet(c.Request.Context(), c.Param("address"), req.SenderWallet); err != nil {
		h.respondError(c, err, "Failed to attach sender wallet")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SignupHandler) RetryVerification(c *gin.Context) {
	result, err := h.reconciliationService.RetryVerification(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err, "Failed to retry verification")
		return
	}

	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	Destination string `json:"destination,omitempty"`
}

func (h *SignupHandler) ProcessRefund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Bad Request",
				"message": err.Error(),
			})
			return
		}
	}

	result, err := h.reconciliationService.ProcessRefund(c.Request.Context(), c.Param("address"), req.Destination)
	if err != nil {
		h.respondError(c, err, "Failed to process refund")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SignupHandler) CompleteSignup(c *gin.Context) {
	txID, err := h.reconciliationService.CompleteSignup(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err, "Failed to complete signup")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tx_id":   txID,
	})
}

// TriggerSweep kicks off a batch auto-verification pass in the
// background and returns immediately.
func (h *SignupHandler) TriggerSweep(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		h.reconciliationService.AutoVerifyAll(ctx)
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Auto-verification sweep started"})
}

func (h *SignupHandler) respondError(c *gin.Context, err error, fallback string) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": validationErr.Error(),
		})
	case errors.Is(err, domain.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrRecordExists),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrSignupCompleted),
		errors.Is(err, domain.ErrNotVerified):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrNoSenderWallet):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrRefundSubmission):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Bad Gateway",
			"message": err.Error(),
		})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": fallback,
		})
	}
}
