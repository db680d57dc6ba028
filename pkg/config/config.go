package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// DB
	PGPaymentsDSN string `envconfig:"PG_PAYMENTS_DSN" required:"true"`
	// Payment provider
	PaymentProvider     string `envconfig:"PAYMENT_PROVIDER" default:"stripe"` // stripe | fake
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret       string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	WebhookToleranceSec int    `envconfig:"WEBHOOK_TOLERANCE_SEC" default:"300"`
	// Splits
	PlatformFeePercent string `envconfig:"PLATFORM_FEE_PERCENT" default:"10"`
	Currency           string `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	// Redirect targets
	FrontendBaseURL string `envconfig:"FRONTEND_BASE_URL" default:"http://localhost:3000"`
	// Network
	PaymentsHTTPAddr string `envconfig:"PAYMENTS_HTTP_ADDR" default:":8080"`
	// RabbitMQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
