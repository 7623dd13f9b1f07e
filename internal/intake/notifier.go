package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/systemofatown/intake-server/internal/models"
)

// ReceivedEvent is published when an item lands in the intake area
type ReceivedEvent struct {
	ItemID     uuid.UUID `json:"itemId"`
	Source     string    `json:"source"`
	FileName   string    `json:"fileName,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// RoutedEvent is published when an item is delivered to a tenant
type RoutedEvent struct {
	ItemID     uuid.UUID `json:"itemId"`
	TenantID   uuid.UUID `json:"tenantId"`
	DocumentID uuid.UUID `json:"documentId"`
	PublicID   string    `json:"publicId"`
	RoutedAt   time.Time `json:"routedAt"`
}

// Notifier fans intake events out to the in-process bus and to NATS.
// Both sinks are best-effort: delivery already happened by the time the
// notifier runs, and notification failure must not undo it.
type Notifier struct {
	nc  *nats.Conn
	bus *Bus
}

// NewNotifier creates a notifier. nc may be nil for standalone mode.
func NewNotifier(nc *nats.Conn, bus *Bus) *Notifier {
	return &Notifier{nc: nc, bus: bus}
}

// ItemReceived announces a newly captured item
func (n *Notifier) ItemReceived(ctx context.Context, item *models.InboundItem) {
	if n.bus != nil {
		n.bus.Publish(State{
			ItemID: item.ID,
			Phase:  PhaseReceived,
			At:     item.CreatedAt,
		})
	}

	event := ReceivedEvent{
		ItemID:     item.ID,
		Source:     string(item.Source),
		ReceivedAt: item.CreatedAt,
	}
	if item.FileName != nil {
		event.FileName = *item.FileName
	}

	n.publish(fmt.Sprintf("intake.item.%s.received", item.ID), event)
}

// ItemRouted announces a successful delivery
func (n *Notifier) ItemRouted(ctx context.Context, item *models.InboundItem, doc *models.Document) {
	if n.bus != nil {
		n.bus.Publish(State{
			ItemID:   item.ID,
			Phase:    PhaseRouted,
			TenantID: item.AssignedTenantID,
			At:       time.Now(),
		})
	}

	routedAt := time.Now()
	if item.RoutedToZone2At != nil {
		routedAt = *item.RoutedToZone2At
	}

	n.publish(fmt.Sprintf("intake.item.%s.routed", item.ID), RoutedEvent{
		ItemID:     item.ID,
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
		PublicID:   doc.PublicID,
		RoutedAt:   routedAt,
	})
}

func (n *Notifier) publish(subject string, payload interface{}) {
	if n.nc == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Intake event marshal failed")
		return
	}

	if err := n.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Intake event publish failed")
	}
}
