package repository

import (
	"context"
	"fmt"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReminderLogRepository struct {
	collection *mongo.Collection
}

func NewReminderLogRepository(db *mongo.Database) *ReminderLogRepository {
	return &ReminderLogRepository{
		collection: db.Collection("reminderLogs"),
	}
}

// CreateReminderLog inserts a new reminder log entry
func (r *ReminderLogRepository) CreateReminderLog(ctx context.Context, entry *models.ReminderLog) error {
	entry.ID = uuid.NewString()
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		logger.Log.WithError(err).Error("Failed to insert reminder log")
		return fmt.Errorf("failed to insert reminder log: %w", err)
	}
	return nil
}

// ListReminderLogs fetches the most recent reminder logs of one type. An
// empty type matches all.
func (r *ReminderLogRepository) ListReminderLogs(ctx context.Context, logType string, limit int) ([]models.ReminderLog, error) {
	filter := bson.M{}
	if logType != "" {
		filter["type"] = logType
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminder logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := []models.ReminderLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode reminder logs: %w", err)
	}
	return logs, nil
}
