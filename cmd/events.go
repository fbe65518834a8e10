/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tecnm-sys/apiserver/config"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/mq"
	"github.com/tecnm-sys/apiserver/internal/services"
)

// eventsCmd groups commands that work with the auth events channel.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published auth events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print auth events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logger.NewLogger("events", cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is none, nothing to tail")
		}
		defer broker.Close()

		log.Info().Str("channel", cfg.MQ.EventsChannel).Msg("tailing events")
		err = broker.Subscribe(ctx, cfg.MQ.EventsChannel, func(_ context.Context, msg mq.Message) error {
			var event services.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable event")
				return nil
			}
			log.Info().
				Str("type", event.Type).
				Int("user_id", event.UserID).
				Str("email", event.Email).
				Str("role", event.Role.String()).
				Time("occurred_at", event.OccurredAt).
				Msg("event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
