package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const leaderboardSettingsID = "leaderboard"

// SettingsRepository stores the singleton leaderboard settings document.
type SettingsRepository struct {
	collection *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{
		collection: db.Collection("settings"),
	}
}

// GetLeaderboardSettings returns empty settings when none were saved yet.
func (r *SettingsRepository) GetLeaderboardSettings(ctx context.Context) (*models.LeaderboardSettings, error) {
	var s models.LeaderboardSettings
	err := r.collection.FindOne(ctx, bson.M{"_id": leaderboardSettingsID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.LeaderboardSettings{ID: leaderboardSettingsID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) SetLeaderboardReset(ctx context.Context, at time.Time, by string) error {
	return r.upsert(ctx, bson.M{
		"leaderboardResetTimestamp": at,
		"updatedAt":                 at,
		"updatedBy":                 by,
	})
}

func (r *SettingsRepository) SetCountdown(ctx context.Context, c models.Countdown) error {
	return r.upsert(ctx, bson.M{
		"countdown": c,
		"updatedAt": c.UpdatedAt,
		"updatedBy": c.UpdatedBy,
	})
}

func (r *SettingsRepository) upsert(ctx context.Context, fields bson.M) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": leaderboardSettingsID},
		bson.M{"$set": fields},
		options.Update().SetUpsert(true))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to save leaderboard settings")
		return fmt.Errorf("failed to save leaderboard settings: %w", err)
	}
	return nil
}
