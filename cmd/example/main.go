package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fm407/go-avanza"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	// Load .env from project root (assuming we run from cmd/example or root)
	cfg, err := avanza.LoadConfig("../../.env", "../.env", ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	client := avanza.NewClientFromConfig(cfg,
		avanza.WithLogger(log),
		avanza.WithDebug(os.Getenv("AVANZA_DEBUG") != ""),
		avanza.WithRateLimit(2, 1),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Info().Str("username", cfg.Username).Msg("attempting login")
	if err := client.Authenticate(ctx, cfg.Credentials(), cfg.SecondFactorProvider()); err != nil {
		switch {
		case errors.Is(err, avanza.ErrInvalidCredentials):
			log.Fatal().Msg("wrong username or password")
		case errors.Is(err, avanza.ErrSecondFactorRejected), errors.Is(err, avanza.ErrSecondFactorExpired):
			log.Fatal().Err(err).Msg("TOTP code not accepted, check AVANZA_TOTP_SECRET and the system clock")
		default:
			log.Fatal().Err(err).Msg("login failed")
		}
	}
	customerID, _ := client.CustomerID()
	fmt.Printf("Login successful (customer %s)\n", customerID)

	fmt.Println("Fetching positions...")
	report, err := client.GetPositionsReport(ctx)
	if err != nil {
		if errors.Is(err, avanza.ErrSessionExpired) {
			log.Fatal().Msg("session expired, log in again")
		}
		log.Fatal().Err(err).Msg("failed to get positions")
	}

	if report.TotalBalance != nil {
		fmt.Printf("Total balance: %s\n", report.TotalBalance.StringFixed(2))
	}
	for _, group := range report.InstrumentPositions {
		fmt.Printf("  Group: %s\n", group.InstrumentType)
		for _, pos := range group.Positions {
			name := pos.OrderbookID
			if pos.Name != nil {
				name = *pos.Name
			}
			fmt.Printf("    - %s (account %s): %s @ %s = %s %s\n",
				name, pos.AccountID, pos.Volume, pos.AverageAcquiredPrice.StringFixed(2),
				pos.Value.StringFixed(2), pos.Currency)
		}
	}
}
