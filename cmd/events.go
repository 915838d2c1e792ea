/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopfront/apiserver/config"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Log order events from the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.Env)

		broker, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("init mq: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		log.Info("listening for order events", slog.String("channel", cfg.MQ.OrdersChannel))
		err = broker.Subscribe(cmd.Context(), cfg.MQ.OrdersChannel, logOrderEvent(log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func logOrderEvent(log *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		event, err := mq.DecodeOrderCreated(msg)
		if err != nil {
			log.Warn("dropping malformed order event", slog.String("message_id", msg.ID), logging.Err(err))
			return mq.ErrDiscard
		}
		log.Info("order created",
			slog.Int("order_id", event.OrderID),
			slog.Int("user_id", event.UserID),
			slog.String("product_name", event.ProductName),
			slog.String("total_price", event.TotalPrice.StringFixed(2)),
			slog.Time("created_at", event.CreatedAt),
		)
		return nil
	}
}
