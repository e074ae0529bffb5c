package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"crossbook/src/config"
	"crossbook/src/engine"
	"crossbook/src/feed"
	"crossbook/src/handlers"
	"crossbook/src/logger"
	"crossbook/src/routes"
	"crossbook/src/store"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	log := logger.GetLogger()

	log.Info().Msg("Initializing matching engine")

	var ledger *store.Store
	if cfg.StorePath != "" {
		var err error
		ledger, err = store.Open(cfg.StorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("Failed to open trade ledger")
		}
		log.Info().Str("path", cfg.StorePath).Msg("Trade ledger opened")
	}

	publisher := feed.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if publisher != nil {
		log.Info().
			Strs("brokers", cfg.KafkaBrokers).
			Str("topic", cfg.KafkaTopic).
			Msg("Trade feed enabled")
	}

	matchingEngine := engine.NewEngine(func(t *engine.Trade) {
		if ledger != nil {
			if err := ledger.AppendTrade(t); err != nil {
				log.Error().Err(err).Str("trade_id", t.ID).Msg("Failed to append trade to ledger")
			}
		}
		publisher.PublishTrade(context.Background(), t)
	})
	if ledger != nil {
		maxSeq, err := ledger.MaxTradeSeq()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read trade ledger sequence")
		}
		matchingEngine.SeedTradeSeq(maxSeq)
		log.Info().Uint64("trade_seq", maxSeq).Msg("Trade sequence restored from ledger")
	}
	processor := engine.NewProcessor(matchingEngine)
	orderHandler := handlers.NewOrderHandler(processor, matchingEngine, ledger, cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, orderHandler, cfg)

	drainDone := make(chan struct{})
	if cfg.DrainInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.DrainInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					result, err := processor.DrainAll()
					if err != nil {
						log.Error().Err(err).Msg("Periodic drain failed")
					}
					if result != nil && len(result.Trades) > 0 {
						log.Info().
							Int("orders", len(result.Orders)).
							Int("trades", len(result.Trades)).
							Msg("Periodic drain completed")
					}
				case <-drainDone:
					return
				}
			}
		}()
		log.Info().Dur("interval", cfg.DrainInterval).Msg("Periodic drain enabled")
	}

	serverError := make(chan error, 1)
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", cfg.Port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", cfg.Port).
			Msg("Matching engine started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/orders",
				"DELETE /api/v1/orders/:id",
				"GET    /api/v1/orders/:id",
				"GET    /api/v1/orderbook/:market",
				"GET    /api/v1/orderbook/:market/best",
				"GET    /api/v1/trades/:market",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	close(drainDone)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}

	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing trade feed")
	}
	if ledger != nil {
		if err := ledger.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing trade ledger")
		}
	}

	log.Info().Msg("Shutdown complete")
	logger.CloseLogger()
}
