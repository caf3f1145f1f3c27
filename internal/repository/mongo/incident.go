package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

type incidentDocument struct {
	ID            string     `bson:"_id"`
	Kind          string     `bson:"kind"`
	Status        string     `bson:"status"`
	EventID       string     `bson:"event_id"`
	ReservationID string     `bson:"reservation_id"`
	PartnerID     string     `bson:"partner_id"`
	Seats         int        `bson:"seats"`
	EventVersion  int64      `bson:"event_version"`
	Detail        string     `bson:"detail"`
	CreatedAt     time.Time  `bson:"created_at"`
	ResolvedAt    *time.Time `bson:"resolved_at,omitempty"`
}

func (d incidentDocument) toDomain() (domain.Incident, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Incident{}, err
	}

	resID, err := uuid.Parse(d.ReservationID)
	if err != nil {
		return domain.Incident{}, err
	}

	return domain.Incident{
		ID:            id,
		Kind:          domain.IncidentKind(d.Kind),
		Status:        domain.IncidentStatus(d.Status),
		EventID:       d.EventID,
		ReservationID: resID,
		PartnerID:     d.PartnerID,
		Seats:         d.Seats,
		EventVersion:  d.EventVersion,
		Detail:        d.Detail,
		CreatedAt:     d.CreatedAt,
		ResolvedAt:    d.ResolvedAt,
	}, nil
}

type IncidentRepo struct {
	col *mongo.Collection
}

func (r *IncidentRepo) Record(ctx context.Context, inc domain.Incident) error {
	const op = "mongo.IncidentRepo.Record"

	doc := incidentDocument{
		ID:            inc.ID.String(),
		Kind:          string(inc.Kind),
		Status:        string(inc.Status),
		EventID:       inc.EventID,
		ReservationID: inc.ReservationID.String(),
		PartnerID:     inc.PartnerID,
		Seats:         inc.Seats,
		EventVersion:  inc.EventVersion,
		Detail:        inc.Detail,
		CreatedAt:     inc.CreatedAt,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return nil
}

func (r *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Incident, error) {
	const op = "mongo.IncidentRepo.Get"

	var doc incidentDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return domain.Incident{}, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	inc, err := doc.toDomain()
	if err != nil {
		return domain.Incident{}, fmt.Errorf("%s:%w", op, err)
	}

	return inc, nil
}

func (r *IncidentRepo) List(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error) {
	const op = "mongo.IncidentRepo.List"

	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}
	defer cur.Close(ctx)

	var docs []incidentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	out := make([]domain.Incident, 0, len(docs))
	for _, d := range docs {
		inc, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		out = append(out, inc)
	}

	return out, nil
}

func (r *IncidentRepo) HasOpenForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	const op = "mongo.IncidentRepo.HasOpenForReservation"

	n, err := r.col.CountDocuments(ctx,
		bson.M{"reservation_id": reservationID.String(), "status": string(domain.IncidentOpen)},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateErr(err))
	}

	return n > 0, nil
}

func (r *IncidentRepo) MarkResolved(ctx context.Context, id uuid.UUID) error {
	const op = "mongo.IncidentRepo.MarkResolved"

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(domain.IncidentOpen)},
		bson.M{"$set": bson.M{
			"status":      string(domain.IncidentResolved),
			"resolved_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateErr(err))
	}

	if res.ModifiedCount == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
