package store

import (
	"context"
	"time"

	"github.com/tapgate/card-services/internal/db"

	"go.mongodb.org/mongo-driver/mongo"
)

const tapLogCollection = "tap_logs"

// tapLogRetention bounds the audit trail; mongo's TTL monitor enforces it
// through the expires_at index.
const tapLogRetention = 30 * 24 * time.Hour

// TapLogEntry is one ingested tap, stored with masked UIDs only.
type TapLogEntry struct {
	ID         string    `bson:"_id"`
	TerminalId int64     `bson:"terminal_id"`
	TenantId   int64     `bson:"tenant_id"`
	BranchId   int64     `bson:"branch_id"`
	UidMasked  string    `bson:"uid_masked"`
	Purpose    string    `bson:"purpose,omitempty"`
	Resolution string    `bson:"resolution"`
	At         time.Time `bson:"at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

type TapLogStore struct {
	col *mongo.Collection
}

func NewTapLogStore(database *mongo.Database) *TapLogStore {
	db.CreateTTLIndexForCollection(database, tapLogCollection)
	return &TapLogStore{col: database.Collection(tapLogCollection)}
}

func (s *TapLogStore) Insert(ctx context.Context, entry TapLogEntry) error {
	entry.ExpiresAt = entry.At.Add(tapLogRetention)
	_, err := s.col.InsertOne(ctx, entry)
	return err
}
