package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kirinyoku/tix-seats/internal/domain"
)

type reservationDocument struct {
	ID           string    `bson:"_id"`
	EventID      string    `bson:"event_id"`
	PartnerID    string    `bson:"partner_id"`
	Seats        int       `bson:"seats"`
	Status       string    `bson:"status"`
	EventVersion int64     `bson:"event_version"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d reservationDocument) toDomain() (domain.Reservation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Reservation{}, err
	}

	return domain.Reservation{
		ID:           id,
		EventID:      d.EventID,
		PartnerID:    d.PartnerID,
		Seats:        d.Seats,
		Status:       domain.ReservationStatus(d.Status),
		EventVersion: d.EventVersion,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

type LedgerRepo struct {
	col *mongo.Collection
}

func (r *LedgerRepo) Create(ctx context.Context, res domain.Reservation) error {
	const op = "mongo.LedgerRepo.Create"

	now := time.Now().UTC()
	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := reservationDocument{
		ID:           res.ID.String(),
		EventID:      res.EventID,
		PartnerID:    res.PartnerID,
		Seats:        res.Seats,
		Status:       string(res.Status),
		EventVersion: res.EventVersion,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const op = "mongo.LedgerRepo.GetByID"

	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return domain.Reservation{}, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	res, err := doc.toDomain()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (r *LedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus) (bool, error) {
	const op = "mongo.LedgerRepo.UpdateStatus"

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(domain.ReservationConfirmed)},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return res.ModifiedCount == 1, nil
}

func (r *LedgerRepo) CountByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	const op = "mongo.LedgerRepo.CountByEventAndStatus"

	n, err := r.col.CountDocuments(ctx, bson.M{"event_id": eventID, "status": string(status)})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return n, nil
}

func (r *LedgerRepo) SumSeatsByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	const op = "mongo.LedgerRepo.SumSeatsByEventAndStatus"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID, "status": string(status)}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$seats"}}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateErr(err))
	}
	defer cur.Close(ctx)

	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	if len(out) == 0 {
		return 0, nil
	}

	return out[0].Total, nil
}
