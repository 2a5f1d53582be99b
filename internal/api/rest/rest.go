package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/untron/untron-v3-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Views (public read access)
		v1.GET("/settings", handler.GetSettings)
		v1.GET("/leases/:id", handler.GetLease)
		v1.GET("/receivers/:salt", handler.GetReceiver)
		v1.GET("/receivers/:salt/pulls/:token", handler.GetReceiverPull)
		v1.GET("/claims/:id", handler.GetClaim)
		v1.GET("/queues", handler.ListQueues)
		v1.GET("/queues/:token/claims", handler.GetPendingClaims)
		v1.GET("/event-chain/head", handler.GetEventChainHead)
		v1.GET("/event-chain/entries", handler.GetEventChainRange)
		v1.GET("/controller/cursor", handler.GetControllerCursor)
		v1.GET("/events", handler.ListEvents)
		v1.GET("/accounting", handler.GetAccounting)
		v1.GET("/deposits/:tx_id", handler.GetDeposit)

		// Operations (requires authentication)
		ops := v1.Group("", middleware.Auth(authCfg))
		ops.POST("/leases", handler.CreateLease)
		ops.POST("/leases/:id/payout", handler.UpdatePayout)
		ops.POST("/leases/:id/close", handler.CloseLease)
		ops.POST("/leases/:id/nuke", handler.NukeLease)
		ops.POST("/deposits", handler.RecognizeDeposit)
		ops.POST("/pre-entitlements", handler.PreEntitle)
		ops.POST("/fills", handler.Fill)
		ops.POST("/lp/deposit", handler.LpDeposit)
		ops.POST("/lp/withdraw", handler.LpWithdraw)

		// Owner configuration (requires authentication)
		admin := v1.Group("/admin", middleware.Auth(authCfg))
		admin.POST("/allowlists/:list", handler.SetAllowed)
		admin.POST("/protocol-floors", handler.SetProtocolFloors)
		admin.POST("/realtors/:address", handler.SetRealtorSettings)
		admin.POST("/payout-rate-limit", handler.SetPayoutRateLimit)
		admin.POST("/swap-rates/:token", handler.SetSwapRate)
		admin.POST("/chains/:chain_id/deprecated", handler.SetChainDeprecated)
		admin.POST("/pause", handler.Pause)
		admin.POST("/unpause", handler.Unpause)
		admin.POST("/ownership", handler.TransferOwnership)
		admin.POST("/profit/withdraw", handler.WithdrawProtocolProfit)
		admin.POST("/rescue", handler.RescueTokens)
	}
}
