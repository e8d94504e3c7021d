package ws

import (
	"encoding/json"
	"sync"

	"github.com/tapgate/card-services/internal/comm"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Ws tracks dashboard sockets and which branch each one watches. A socket
// watches at most one branch at a time; re-sending "watch" switches it.
type Ws struct {
	connMap   sync.Map // socketId -> *websocket.Conn
	branchMap sync.Map // socketId -> branchId (int64)
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles a message from a dashboard client.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "watch":
		s.handleWatch(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var payload comm.WatchRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed watch payload %s", err)
		return
	}

	if payload.BranchId <= 0 {
		log.Error("Invalid watch payload: missing branch id")
		return
	}

	s.branchMap.Store(socketId, payload.BranchId)
	log.Infof("socket %s now watching branch %d", socketId, payload.BranchId)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// GetBranchSockets returns every socket watching the given branch.
func (s *Ws) GetBranchSockets(branchId int64) ([]string, bool) {
	var sockets []string
	found := false

	s.branchMap.Range(func(key, value interface{}) bool {
		if value.(int64) == branchId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.branchMap.Delete(socketId)
}
