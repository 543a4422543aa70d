// Package application wires configuration, storage, the dialog engine,
// the bridge transport and the control HTTP surface into one process.
package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/soporte-digital/whatsapp-bot/internal/bridge"
	"github.com/soporte-digital/whatsapp-bot/internal/config"
	"github.com/soporte-digital/whatsapp-bot/internal/contacts"
	"github.com/soporte-digital/whatsapp-bot/internal/database"
	"github.com/soporte-digital/whatsapp-bot/internal/dialog"
	"github.com/soporte-digital/whatsapp-bot/internal/dispatch"
	"github.com/soporte-digital/whatsapp-bot/internal/handler"
	"github.com/soporte-digital/whatsapp-bot/internal/kafka"
	"github.com/soporte-digital/whatsapp-bot/internal/notify"
	"github.com/soporte-digital/whatsapp-bot/internal/osticket"
	"github.com/soporte-digital/whatsapp-bot/internal/router"
	"github.com/soporte-digital/whatsapp-bot/internal/tickets"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// Bot is the running application.
type Bot struct {
	cfg      *config.Config
	httpSrv  *http.Server
	bridgeCl *bridge.Client
	producer *kafka.Producer
}

// NewBot builds the whole dependency graph for the bot process.
func NewBot(cfg *config.Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	contactSvc := contacts.NewService(db)
	ticketSvc := tickets.NewService(db)
	creator := osticket.NewClient(cfg.OsTicketURL, cfg.OsTicketAPIKey)
	notifier := notify.NewClient(cfg.NotifyWebhookURL)
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopic)

	deps := dialog.Deps{
		Contacts: contactSvc,
		Tickets:  ticketSvc,
		Creator:  creator,
		Notifier: notifier,
		Events:   producer,
	}
	engine := dialog.NewEngine(deps)

	bridgeCl := bridge.NewClient(cfg.BridgeWSURL, cfg.BridgeToken,
		func(msg transport.InboundMessage) {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			engine.HandleMessage(ctx, msg)
		},
		engine.SetSelfPhone,
	)
	engine.SetChat(bridgeCl)

	dispatcher := dispatch.New(bridgeCl, cfg.DefaultCountry)
	sendHandler := handler.NewSendHandler(dispatcher, bridgeCl.Ready)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(sendHandler, bridgeCl.Ready),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Bot{
		cfg:      cfg,
		httpSrv:  httpSrv,
		bridgeCl: bridgeCl,
		producer: producer,
	}, nil
}

// Run starts the bridge connection and the HTTP server and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("HTTP server listening on %s", b.httpSrv.Addr)
	log.Printf("  Send endpoint: POST http://%s/enviar", b.httpSrv.Addr)
	log.Printf("  Swagger UI:    http://%s/swagger", b.httpSrv.Addr)
	log.Printf("  Health:        http://%s/health", b.httpSrv.Addr)
	log.Printf("bridge: dialing %s", b.cfg.BridgeWSURL)

	go b.bridgeCl.Run(ctx)

	go func() {
		if err := b.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := b.producer.Close(); err != nil {
		log.Printf("kafka: close: %v", err)
	}
	return nil
}
