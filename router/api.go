package router

import (
	"context"
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/handlers"
	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/internal/logger"
	"github.com/sgahotel/cs-service/repository"
	"github.com/sgahotel/cs-service/services"
)

// NewGinRouter wires services and handlers. The returned func releases
// background resources (the JWKS refresher).
func NewGinRouter(cfg config.Config, pg *sql.DB, rdb *redis.Client) (*gin.Engine, func()) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.SetProduction(cfg.IsProduction())

	r := gin.New()
	r.Use(logger.GinMiddleware(), handlers.Recovery())

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Api-Key, X-Webhook-Hmac")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	store := repository.NewStore(pg)

	// Initialize services
	fcmService := services.NewFCMService(cfg.FCM)
	wahaService := services.NewWAHAService(cfg.WAHA)
	agentRouter := services.NewAgentRouterService(cfg.H2H)
	keycloakAuth := services.NewKeycloakAuthService(cfg.Keycloak)

	var notifier services.StaffNotifier
	if fcmService.Enabled() {
		notifier = fcmService
	}

	webhookService := services.NewWebhookService(services.SQLConversationStore{Store: store}, wahaService, agentRouter,
		services.WebhookServiceOptions{
			Notifier:    notifier,
			Dedup:       services.NewRedisDeduplicator(rdb, cfg.Webhook.DedupTTL),
			IdleTimeout: cfg.Session.IdleTimeout,
		})
	guestService := services.NewGuestService(store)
	roomService := services.NewRoomService(store)
	messageService := services.NewMessageService(store, wahaService)
	orderService := services.NewOrderService(store, notifier)
	assignerService := services.NewOrderAssignerService(store)
	workerService := services.NewWorkerService(store)

	var syncer handlers.UserSyncer
	if cfg.Keycloak.SyncUsers {
		syncer = services.NewAuthSyncService(store)
	}

	// Initialize handlers
	checks := map[string]handlers.Pinger{"database": pg}
	if rdb != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	healthHandler := handlers.NewHealthHandler(cfg.AppName, cfg.AppVersion, checks)
	webhookHandler := handlers.NewWebhookHandler(webhookService, wahaService, orderService, messageService)
	authHandler := handlers.NewAuthHandler()
	guestHandler := handlers.NewGuestHandler(guestService)
	roomHandler := handlers.NewRoomHandler(roomService)
	messageHandler := handlers.NewMessageHandler(messageService)
	orderHandler := handlers.NewOrderHandler(orderService, assignerService)
	workerHandler := handlers.NewWorkerHandler(workerService)

	// Initialize middleware
	authMiddleware := handlers.NewKeycloakAuthMiddleware(keycloakAuth, syncer)
	requireStaff := authMiddleware.RequireAnyRole(db.StaffRoles...)

	// PUBLIC ENDPOINTS (no authentication required)
	r.GET("/", healthHandler.Info)

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler.Health)

	// WEBHOOK ENDPOINTS
	webhookRoutes := api.Group("/webhook")
	{
		// WAHA events, optionally signed
		webhookRoutes.POST("/waha", webhookHandler.ReceiveWAHA)

		// Agent router callbacks
		callbacks := webhookRoutes.Group("")
		callbacks.Use(handlers.CallbackAuth(cfg.H2H.CallbackKeyHash))
		callbacks.POST("/orders", webhookHandler.CreateOrders)
		callbacks.POST("/messages/send", webhookHandler.SendMessage)
	}

	// PROTECTED ENDPOINTS (require Keycloak authentication)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/guests/register", guestHandler.Register)
		protected.GET("/rooms", roomHandler.List)
		protected.GET("/workers", requireStaff, workerHandler.List)
		protected.GET("/messages", messageHandler.List)

		orderRoutes := protected.Group("/orders")
		{
			orderRoutes.GET("", orderHandler.List)
			orderRoutes.POST("/:order_number/assign", requireStaff, orderHandler.Assign)
		}
	}

	return r, keycloakAuth.Close
}
