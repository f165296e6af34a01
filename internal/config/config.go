package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	GatewayBaseURL     string `env:"GATEWAY_BASE_URL" envDefault:"https://api.gateway.local"`
	GatewayCallbackURL string `env:"GATEWAY_CALLBACK_URL" envDefault:"http://app:8080/api/v1/webhooks/gateway"`
	GatewayProvider    string `env:"GATEWAY_PROVIDER" envDefault:"paycore"`

	// Transfer fee policy. Rates are fractions, e.g. 0.005 = 0.5%.
	DomesticFeeRate      string `env:"DOMESTIC_FEE_RATE" envDefault:"0.005"`
	InternationalFeeRate string `env:"INTERNATIONAL_FEE_RATE" envDefault:"0.01"`
	MinTransferFee       string `env:"MIN_TRANSFER_FEE" envDefault:"10"`

	// Transfer limits, in wallet currency units.
	SingleTransferLimit  string `env:"SINGLE_TRANSFER_LIMIT" envDefault:"5000000"`
	DailyTransferLimit   string `env:"DAILY_TRANSFER_LIMIT" envDefault:"1000000"`
	MonthlyTransferLimit string `env:"MONTHLY_TRANSFER_LIMIT" envDefault:"20000000"`

	MinLoanRepayment string `env:"MIN_LOAN_REPAYMENT" envDefault:"0"`

	OutboxPollIntervalS  int `env:"OUTBOX_POLL_INTERVAL_S" envDefault:"5"`
	WebhookPollIntervalS int `env:"WEBHOOK_POLL_INTERVAL_S" envDefault:"2"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
