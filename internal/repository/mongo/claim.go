package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// claimDocument is keyed by the reservation id, so the _id index makes a
// second insert fail.
type claimDocument struct {
	ReservationID string    `bson:"_id"`
	ClaimedAt     time.Time `bson:"claimed_at"`
}

type ClaimRepo struct {
	col *mongo.Collection
}

func (r *ClaimRepo) Claim(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	const op = "mongo.ClaimRepo.Claim"

	_, err := r.col.InsertOne(ctx, claimDocument{
		ReservationID: reservationID.String(),
		ClaimedAt:     time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return true, nil
}

func (r *ClaimRepo) Unclaim(ctx context.Context, reservationID uuid.UUID) error {
	const op = "mongo.ClaimRepo.Unclaim"

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": reservationID.String()}); err != nil {
		return fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return nil
}
