package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kirinyoku/tix-seats/internal/domain"
)

type inventoryDocument struct {
	EventID        string    `bson:"event_id"`
	Name           string    `bson:"name"`
	TotalSeats     int       `bson:"total_seats"`
	AvailableSeats int       `bson:"available_seats"`
	Version        int64     `bson:"version"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d inventoryDocument) toDomain() domain.EventInventory {
	return domain.EventInventory{
		EventID:        d.EventID,
		Name:           d.Name,
		TotalSeats:     d.TotalSeats,
		AvailableSeats: d.AvailableSeats,
		Version:        d.Version,
		UpdatedAt:      d.UpdatedAt,
	}
}

type InventoryRepo struct {
	col *mongo.Collection
}

func (r *InventoryRepo) Get(ctx context.Context, eventID string) (domain.EventInventory, error) {
	const op = "mongo.InventoryRepo.Get"

	var doc inventoryDocument
	if err := r.col.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&doc); err != nil {
		return domain.EventInventory{}, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return doc.toDomain(), nil
}

// ConditionalAdjust matches the document only when the version is unchanged
// and the adjusted seat count stays within bounds, then increments both
// fields in the same update.
func (r *InventoryRepo) ConditionalAdjust(
	ctx context.Context,
	eventID string,
	expectedVersion int64,
	delta int,
) (bool, error) {
	const op = "mongo.InventoryRepo.ConditionalAdjust"

	next := bson.M{"$add": bson.A{"$available_seats", delta}}

	filter := bson.M{
		"event_id": eventID,
		"version":  expectedVersion,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{next, 0}},
			bson.M{"$lte": bson.A{next, "$total_seats"}},
		}},
	}

	update := bson.M{
		"$inc": bson.M{"available_seats": delta, "version": int64(1)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return res.ModifiedCount == 1, nil
}

func (r *InventoryRepo) SeedIfAbsent(ctx context.Context, eventID, name string, totalSeats int) (bool, error) {
	const op = "mongo.InventoryRepo.SeedIfAbsent"

	update := bson.M{
		"$setOnInsert": inventoryDocument{
			EventID:        eventID,
			Name:           name,
			TotalSeats:     totalSeats,
			AvailableSeats: totalSeats,
			Version:        0,
			UpdatedAt:      time.Now().UTC(),
		},
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"event_id": eventID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// a concurrent seed won the upsert
			return false, nil
		}
		return false, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return res.UpsertedCount == 1, nil
}
