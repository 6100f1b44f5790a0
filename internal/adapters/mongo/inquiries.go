package mongo

import (
	"context"

	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
)

type InquiryRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewInquiryRepository(db *mongo.Database, logger observability.Logger) *InquiryRepository {
	return &InquiryRepository{
		coll:   db.Collection("inquiries"),
		logger: logger,
	}
}

func (i *InquiryRepository) Insert(ctx context.Context, inq domain.Inquiry) error {
	if _, err := i.coll.InsertOne(ctx, inq); err != nil {
		i.logger.WithError(err).Error("failed to insert inquiry")
		return err
	}
	return nil
}
