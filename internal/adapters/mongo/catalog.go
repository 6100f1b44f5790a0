package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ContentRepository keeps the long-form part of each trek listing.
type ContentRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewContentRepository(db *mongo.Database, logger observability.Logger) *ContentRepository {
	return &ContentRepository{
		coll:   db.Collection("trek_content"),
		logger: logger,
	}
}

type ContentDoc struct {
	ID         uuid.UUID             `bson:"_id"`
	Highlights []string              `bson:"highlights"`
	Itinerary  []domain.ItineraryDay `bson:"itinerary"`
	Included   []string              `bson:"included"`
	Excluded   []string              `bson:"excluded"`
	UpdatedAt  time.Time             `bson:"updated_at"`
}

// GetContent returns empty content for a trek that never had any.
func (c *ContentRepository) GetContent(ctx context.Context, id uuid.UUID) (domain.TrekContent, error) {
	var doc ContentDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.TrekContent{}, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("trek_id", id).Error("failed to get trek content")
		return domain.TrekContent{}, err
	}
	return domain.TrekContent{
		Highlights: doc.Highlights,
		Itinerary:  doc.Itinerary,
		Included:   doc.Included,
		Excluded:   doc.Excluded,
	}, nil
}

func (c *ContentRepository) PutContent(ctx context.Context, id uuid.UUID, content domain.TrekContent) error {
	doc := ContentDoc{
		ID:         id,
		Highlights: content.Highlights,
		Itinerary:  content.Itinerary,
		Included:   content.Included,
		Excluded:   content.Excluded,
		UpdatedAt:  time.Now(),
	}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.WithError(err).WithField("trek_id", id).Error("failed to store trek content")
		return err
	}
	return nil
}

func (c *ContentRepository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (c *ContentRepository) DeleteAll(ctx context.Context) error {
	_, err := c.coll.DeleteMany(ctx, bson.M{})
	return err
}
