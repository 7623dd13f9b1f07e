package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/systemofatown/intake-server/internal/intake"
	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

// NATSSubscriber consumes intake events and turns them into the persistent
// audit trail (event_logs). It runs alongside the API server; other
// deployments can subscribe to the same subjects without touching this code.
type NATSSubscriber struct {
	nc    *nats.Conn
	store storage.Store
	subs  []*nats.Subscription
}

// NewNATSSubscriber creates a NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store) *NATSSubscriber {
	return &NATSSubscriber{
		nc:    nc,
		store: store,
		subs:  make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until the context is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub1, err := s.nc.Subscribe("intake.item.*.received", s.handleItemReceived)
	if err != nil {
		return fmt.Errorf("subscribe item received: %w", err)
	}
	s.subs = append(s.subs, sub1)

	sub2, err := s.nc.Subscribe("intake.item.*.routed", s.handleItemRouted)
	if err != nil {
		return fmt.Errorf("subscribe item routed: %w", err)
	}
	s.subs = append(s.subs, sub2)

	log.Info().Msg("NATS subscriber started")

	<-ctx.Done()
	return s.Stop()
}

// Stop unsubscribes everything
func (s *NATSSubscriber) Stop() error {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("Unsubscribe failed")
		}
	}
	s.subs = s.subs[:0]
	return nil
}

func (s *NATSSubscriber) handleItemReceived(msg *nats.Msg) {
	var event intake.ReceivedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("Bad intake event payload")
		return
	}

	entry := &models.EventLog{
		InboundItemID: &event.ItemID,
		Type:          models.EventTypeItemReceived,
		Level:         models.EventLevelInfo,
		Code:          "item_received",
		Description:   fmt.Sprintf("Eingang erfasst (%s)", event.Source),
		Details: models.Variables{
			"source":   event.Source,
			"fileName": event.FileName,
		},
	}

	if err := s.store.CreateEventLog(context.Background(), entry); err != nil {
		log.Error().Err(err).Str("item", event.ItemID.String()).Msg("Event log write failed")
	}
}

func (s *NATSSubscriber) handleItemRouted(msg *nats.Msg) {
	var event intake.RoutedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("Bad intake event payload")
		return
	}

	entry := &models.EventLog{
		TenantID:      &event.TenantID,
		InboundItemID: &event.ItemID,
		DocumentID:    &event.DocumentID,
		Type:          models.EventTypeItemRouted,
		Level:         models.EventLevelInfo,
		Code:          "item_routed",
		Description:   fmt.Sprintf("Post zugestellt als %s", event.PublicID),
		Details: models.Variables{
			"publicId": event.PublicID,
		},
	}

	if err := s.store.CreateEventLog(context.Background(), entry); err != nil {
		log.Error().Err(err).Str("item", event.ItemID.String()).Msg("Event log write failed")
	}
}
