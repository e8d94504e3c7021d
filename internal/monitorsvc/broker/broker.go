package broker

import (
	"encoding/json"

	"github.com/tapgate/card-services/internal/comm"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Broker consumes card events from the card service and fans them out to the
// dashboard sockets watching the event's branch.
type Broker struct {
	Conn             *nats.Conn
	GetConnection    func(string) (*websocket.Conn, bool)
	GetBranchSockets func(int64) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (*websocket.Conn, bool), fncGetBranchSockets func(int64) ([]string, bool)) *Broker {
	return &Broker{
		Conn:             conn,
		GetConnection:    fncGetConnection,
		GetBranchSockets: fncGetBranchSockets,
	}
}

func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	event := &comm.CardEvent{}
	err := json.Unmarshal(msgNats.Data, &event)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	sockets, ok := b.GetBranchSockets(event.BranchId)
	if !ok {
		return // nobody watching this branch
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	for _, socketId := range sockets {
		if conn, ok := b.GetConnection(socketId); ok {
			msg := &comm.WSMessage{
				Type:     "card-event",
				Data:     data,
				SocketId: socketId,
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Println(err)
			}
		}
	}
}
