package broker

import (
	"encoding/json"

	"github.com/tapgate/card-services/internal/comm"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const cardEventsTopic = "card.events"

// Broker publishes card events for the monitor service. Publishing is
// best-effort; a down NATS must never fail an admin call or a tap.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) PublishCardEvent(ev comm.CardEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("unable to marshal CardEvent: %v", err)
		return
	}

	if err := b.Conn.Publish(cardEventsTopic, payload); err != nil {
		log.Errorf("Error publishing to topic %s: %s", cardEventsTopic, err)
	}
}
