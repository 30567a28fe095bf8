package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"unite-tickets/config"
	"unite-tickets/internal/handlers"
	"unite-tickets/internal/services"
	"unite-tickets/internal/services/pesapal"
	_ "unite-tickets/migrations"
	"unite-tickets/monitoring"
	"unite-tickets/security"
	"unite-tickets/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)
	publisher := &services.PubNubPublisher{PN: pn}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the payment gateway; token refresh runs until shutdown.
	gateway, err := pesapal.New(ctx, &pesapal.Config{
		BaseURL:        cfg.Pesapal.BaseURL,
		ConsumerKey:    cfg.Pesapal.ConsumerKey,
		ConsumerSecret: cfg.Pesapal.ConsumerSecret,
	})
	if err != nil {
		return err
	}

	// Initialize services
	purchaseStore := services.NewPurchaseStore(app)
	paymentService := services.NewPaymentService(redisClient, purchaseStore, gateway, publisher, cfg)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, publisher)
	ticketHandler := handlers.NewTicketHandler(app, paymentService)
	rateLimiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// The gateway only notifies endpoints it knows about; make sure
		// the registration exists before taking orders.
		go func() {
			if _, err := paymentService.EnsureIPNRegistration(ctx); err != nil {
				slog.Error("IPN registration failed; order submission is blocked until it succeeds", "error", err)
			}
		}()

		if cfg.EnableMetrics {
			monitoring.NewMonitor(app)
			go serveMetrics(cfg.MetricsPort)
		}

		// IPN endpoints - the gateway delivers on either transport
		e.Router.GET("/api/tickets/ipn-notification", paymentHandler.IPNNotificationGET)
		e.Router.POST("/api/tickets/ipn-notification", paymentHandler.IPNNotificationPOST)

		// Purchase endpoints
		e.Router.POST("/api/tickets/purchase", paymentHandler.SubmitPurchase).BindFunc(rateLimiter.PurchaseGuard())
		e.Router.GET("/api/tickets/purchase/{reference}/status", paymentHandler.CheckPurchaseStatus)

		// Ticket artifact endpoints
		e.Router.GET("/api/tickets/{reference}/pdf", ticketHandler.DownloadTicketPDF)
		e.Router.GET("/api/tickets/{reference}/qr", ticketHandler.TicketQR)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/tickets/test/simulate-payment", paymentHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// serveMetrics exposes prometheus metrics on its own port.
func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
