package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"memberhub.backend/internal/interfaces/http/handlers"
	"memberhub.backend/internal/interfaces/http/middleware"
	"memberhub.backend/pkg/metrics"
)

const (
	serviceName    = "memberhub-backend"
	serviceVersion = "0.1.0"

	// base64 inflates the signature by a third; leave room for envelopes
	bodyOverhead = 64 << 10
)

type routeDeps struct {
	authHandler       *handlers.AuthHandler
	memberHandler     *handlers.MemberHandler
	onboardingHandler *handlers.OnboardingHandler
	adminHandler      *handlers.AdminHandler
	identityAuth      gin.HandlerFunc
	sessionAuth       gin.HandlerFunc
	requireAdmin      gin.HandlerFunc
	maxUploadBytes    int64
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, "+middleware.RequestIDHeader+", "+middleware.SessionHeader)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Expose-Headers", middleware.RequestIDHeader+", "+middleware.SessionHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine, m *metrics.Metrics) {
	r.GET("/metrics", gin.WrapH(m.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Session routes (identity token only)
		auth := v1.Group("/auth")
		auth.Use(d.identityAuth)
		{
			auth.POST("/session", d.authHandler.OpenSession)
			auth.DELETE("/session", d.authHandler.CloseSession)
		}

		// Member self-service
		members := v1.Group("/members")
		members.Use(d.identityAuth)
		{
			members.GET("/me", d.memberHandler.GetMe)
			members.POST("/me/registration", d.memberHandler.Register)
			members.PATCH("/me", d.memberHandler.UpdateMe)
		}

		// Onboarding workflow
		onboarding := v1.Group("/onboarding")
		onboarding.Use(d.identityAuth, d.sessionAuth)
		{
			onboarding.GET("", d.onboardingHandler.GetState)
			onboarding.POST("/documents/submit", d.onboardingHandler.SubmitDocuments)
			onboarding.POST("/documents/:kind", middleware.BodyLimit(d.maxUploadBytes+bodyOverhead), d.onboardingHandler.UploadDocument)
			onboarding.POST("/payment", middleware.IdempotencyMiddleware(), d.onboardingHandler.StartPayment)
			onboarding.GET("/payment", d.onboardingHandler.PaymentStatus)
			onboarding.DELETE("/payment", d.onboardingHandler.CancelPayment)
			onboarding.POST("/signature", middleware.BodyLimit(d.maxUploadBytes*4/3+bodyOverhead), d.onboardingHandler.SubmitSignature)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(d.identityAuth, d.requireAdmin)
		{
			admin.GET("/members", d.adminHandler.ListMembers)
			admin.PATCH("/members/:id", d.adminHandler.UpdateMember)
			admin.DELETE("/members/:id", d.adminHandler.DeleteMember)
			admin.POST("/members/:id/onboarding/reset", d.adminHandler.ResetOnboarding)
			admin.GET("/members/:id/card", d.adminHandler.GetCard)
			admin.PUT("/members/:id/card", d.adminHandler.UpdateCard)
			admin.POST("/reconciliation/repair", d.adminHandler.Repair)
		}
	}
}
