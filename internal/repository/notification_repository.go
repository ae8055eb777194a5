package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

// CreateNotification stores n and returns its new id.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) (string, error) {
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		logger.Log.WithError(err).Error("Failed to create notification")
		return "", fmt.Errorf("failed to create notification: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
		"type":            n.Type,
	}).Info("Notification created")
	return n.ID, nil
}

func (r *NotificationRepository) GetNotificationByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// ListNotifications returns a recipient's notifications, newest first. A
// limit of zero means no limit.
func (r *NotificationRepository) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	filter := bson.M{"recipientId": recipientID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"recipientId": recipientID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return int(n), nil
}

// MarkAsRead is idempotent.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllAsRead returns how many notifications changed state.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) (int, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"recipientId": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return int(result.ModifiedCount), nil
}

// UpdateEmailStatus records the outcome of an email attempt.
func (r *NotificationRepository) UpdateEmailStatus(ctx context.Context, id string, status models.EmailStatus) error {
	set := bson.M{"emailSent": status.Sent}
	update := bson.M{}
	if status.Sent {
		set["emailSentAt"] = status.SentAt
		update["$unset"] = bson.M{"emailError": ""}
	} else {
		set["emailError"] = status.Error
	}
	update["$set"] = set

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update email status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveRequestNotifications stamps the outcome onto every pending
// supervisor request notification about requesterID and marks them read.
func (r *NotificationRepository) ResolveRequestNotifications(ctx context.Context, requesterID, status, by string, at time.Time) (int, error) {
	filter := bson.M{
		"type":                         models.NotificationSupervisorRequest,
		"additionalData.requesterId":   requesterID,
		"additionalData.requestStatus": models.RequestStatusPending,
	}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"read":                         true,
		"additionalData.requestStatus": status,
		"additionalData.processedBy":   by,
		"additionalData.processedAt":   at,
	}})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve request notifications: %w", err)
	}
	return int(result.ModifiedCount), nil
}
