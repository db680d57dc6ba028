package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/you/charter-booking/internal/httpx"
	"github.com/you/charter-booking/internal/notify"
	"github.com/you/charter-booking/internal/provider"
	"github.com/you/charter-booking/internal/provider/fakecli"
	"github.com/you/charter-booking/internal/provider/stripecli"
	"github.com/you/charter-booking/internal/repository"
	"github.com/you/charter-booking/internal/service"
	"github.com/you/charter-booking/pkg/config"
	"github.com/you/charter-booking/pkg/db"
	"github.com/you/charter-booking/pkg/mq"
	"github.com/you/charter-booking/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	shutdownTracer := obs.InitTracer("payments")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	// DB
	gdb := db.Open(cfg.PGPaymentsDSN)
	store := repository.NewStore(gdb)
	must(0, store.Migrate())

	// Provider: stripe for real splits, fake for local/deterministic runs.
	var prov provider.Client
	switch cfg.PaymentProvider {
	case "fake":
		prov = fakecli.New(cfg.WebhookSecret)
		log.Println("[payments] using fake provider")
	default:
		if cfg.StripeSecretKey == "" {
			log.Fatal("STRIPE_SECRET_KEY is required for the stripe provider")
		}
		prov = stripecli.New(cfg.StripeSecretKey, cfg.WebhookSecret,
			time.Duration(cfg.WebhookToleranceSec)*time.Second)
	}

	// MQ publisher feeding the booking collaborator
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.PaymentExchange))
	defer pub.Close()
	notifier := notify.NewMQNotifier(pub, cfg.Currency)

	feePercent := must(decimal.NewFromString(cfg.PlatformFeePercent))
	feeRate := feePercent.Div(decimal.NewFromInt(100))

	intents := service.NewIntentService(store, prov, cfg.Currency, feeRate)
	connect := service.NewConnectService(store, prov, cfg.FrontendBaseURL)
	balance := service.NewBalanceService(store, prov, cfg.Currency, feeRate, cfg.FrontendBaseURL)
	webhooks := service.NewWebhookProcessor(store, prov, connect, notifier)

	r := gin.Default()
	httpx.NewAPI(intents, connect, balance, webhooks).Register(r)

	srv := &http.Server{Addr: cfg.PaymentsHTTPAddr, Handler: r}
	go func() {
		log.Println("[payments] http listening on", cfg.PaymentsHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("[payments] stopped")
}
