package mongo

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewNotificationRepository(db *mongo.Database, logger observability.Logger) *NotificationRepository {
	return &NotificationRepository{
		coll:   db.Collection("notifications"),
		logger: logger,
	}
}

func (n *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := n.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (n *NotificationRepository) Insert(ctx context.Context, items ...domain.Notification) error {
	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		docs = append(docs, item)
	}
	if _, err := n.coll.InsertMany(ctx, docs); err != nil {
		n.logger.WithError(err).Error("failed to insert notifications")
		return err
	}
	return nil
}

func (n *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := n.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	items := []domain.Notification{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (n *NotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) (domain.Notification, error) {
	var updated domain.Notification
	err := n.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return domain.Notification{}, domain.ErrNotFound
	}
	return updated, err
}

func (n *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := n.coll.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (n *NotificationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := n.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
