// Package mongo stores inventory, reservations and incidents in MongoDB.
// The conditional inventory update is a single filtered UpdateOne, so it is
// atomic on a standalone server as well as on a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

const (
	inventoryCollection   = "event_inventory"
	reservationCollection = "reservations"
	incidentCollection    = "reconciliation_incidents"
	claimCollection       = "release_claims"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{
		client: client,
		db:     client.Database(dbName),
	}
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely
// on. Existing indexes are left untouched.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	const op = "mongo.Store.EnsureIndexes"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.db.Collection(inventoryCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.db.Collection(reservationCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.db.Collection(incidentCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Store) Inventory() *InventoryRepo {
	return &InventoryRepo{col: s.db.Collection(inventoryCollection)}
}

func (s *Store) Reservations() *LedgerRepo {
	return &LedgerRepo{col: s.db.Collection(reservationCollection)}
}

func (s *Store) Incidents() *IncidentRepo {
	return &IncidentRepo{col: s.db.Collection(incidentCollection)}
}

func (s *Store) Claims() *ClaimRepo {
	return &ClaimRepo{col: s.db.Collection(claimCollection)}
}

func (s *Store) Storage() repository.Storage {
	return repository.Storage{
		Inventory: s.Inventory(),
		Ledger:    s.Reservations(),
		Incidents: s.Incidents(),
		Claims:    s.Claims(),
		Snapshots: s,
		Close:     s.client.Disconnect,
	}
}

// ConsistencySnapshot reads the inventory and the confirmed seat total with
// two queries. Without a replica set there is no multi-document snapshot, so
// a report taken under write load can show a transient mismatch.
func (s *Store) ConsistencySnapshot(ctx context.Context, eventID string) (domain.ConsistencyReport, error) {
	const op = "mongo.Store.ConsistencySnapshot"

	e, err := s.Inventory().Get(ctx, eventID)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("%s:%w", op, err)
	}

	confirmed, err := s.Reservations().SumSeatsByEventAndStatus(ctx, eventID, domain.ReservationConfirmed)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("%s:%w", op, err)
	}

	return domain.ConsistencyReport{
		EventID:        e.EventID,
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		Version:        e.Version,
		ConfirmedSeats: confirmed,
		Consistent:     int64(e.ReservedSeats()) == confirmed,
	}, nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrConflict
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %w", repository.ErrTransient, err)
	}

	return err
}
