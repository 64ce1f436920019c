package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/application/reconciler"
	"github.com/K33P-repo/k33p-backend/internal/server/middleware"
	"github.com/K33P-repo/k33p-backend/internal/server/websocket"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

type Handlers struct {
	ReconciliationSvc reconciler.IReconciliationService
	Logger            zerolog.Logger
	Config            *config.Config
	WsHub             *websocket.WsHub
}

func New(reconciliationSvc reconciler.IReconciliationService, logger zerolog.Logger, config *config.Config, wsHub *websocket.WsHub) *Handlers {
	return &Handlers{
		ReconciliationSvc: reconciliationSvc,
		Logger:            logger,
		Config:            config,
		WsHub:             wsHub,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	middleware.Setup(router)

	signupHandler := NewSignupHandler(h.ReconciliationSvc, h.Logger)
	wsHandler := NewWebSocketHandler(h.WsHub, h.Config.WebSocket)
	healthHandler := NewHealthHandler()
	authorizeHandler := NewAuthorizeHandler(h.Config.Chain, h.Logger)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint for lifecycle status updates
	router.GET("/status", wsHandler.HandleConnection)

	v1 := router.Group("/v1")
	if h.Config.Security.APIKey != "" {
		v1.Use(middleware.APIKeyAuth(h.Config.Security.APIKey))
	}
	{
		signups := v1.Group("/signups")
		{
			signups.POST("", signupHandler.RecordSignup)
			signups.GET("/:address", signupHandler.GetSignup)
			signups.POST("/:address/wallet", signupHandler.AttachWallet)
			signups.POST("/:address/verify", signupHandler.RetryVerification)
			signups.POST("/:address/refund", signupHandler.ProcessRefund)
			signups.POST("/:address/complete", signupHandler.CompleteSignup)
		}

		verify := v1.Group("/verify")
		{
			verify.POST("/sweep", signupHandler.TriggerSweep)
		}

		chain := v1.Group("/chain")
		{
			chain.POST("/authorize", authorizeHandler.Authorize)
		}
	}
}
