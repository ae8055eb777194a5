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

// GoalFilter narrows ListGoals. Nil fields are ignored.
type GoalFilter struct {
	ApprenticeID  string
	Submitted     *bool
	Approved      *bool
	ApprovedSince *time.Time
}

func (f GoalFilter) bson() bson.M {
	filter := bson.M{}
	if f.ApprenticeID != "" {
		filter["apprenticeId"] = f.ApprenticeID
	}
	if f.Submitted != nil {
		filter["submitted"] = *f.Submitted
	}
	if f.Approved != nil {
		filter["approved"] = *f.Approved
	}
	if f.ApprovedSince != nil {
		filter["approvedAt"] = bson.M{"$gte": *f.ApprovedSince}
	}
	return filter
}

// GoalRepository struct handles database operations related to goals
type GoalRepository struct {
	collection *mongo.Collection
}

// NewGoalRepository creates a new instance of GoalRepository
func NewGoalRepository(db *mongo.Database) *GoalRepository {
	return &GoalRepository{
		collection: db.Collection("goals"),
	}
}

// CreateGoal creates a new goal in the database
func (r *GoalRepository) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	goal.ID = uuid.NewString()
	goal.CreatedAt = time.Now()
	goal.UpdatedAt = goal.CreatedAt
	if goal.Comments == nil {
		goal.Comments = []models.Comment{}
	}

	if _, err := r.collection.InsertOne(ctx, goal); err != nil {
		logger.Log.WithError(err).Error("Failed to insert goal")
		return nil, fmt.Errorf("failed to insert goal: %w", err)
	}

	logger.Log.WithField("goal_id", goal.ID).Info("Goal created successfully")
	return goal, nil
}

// GetGoalByID fetches a goal by its ID
func (r *GoalRepository) GetGoalByID(ctx context.Context, id string) (*models.Goal, error) {
	var goal models.Goal
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&goal); err != nil {
		return nil, notFound(err)
	}
	return &goal, nil
}

// UpdateGoalDetails rewrites the editable fields of an unsubmitted goal.
func (r *GoalRepository) UpdateGoalDetails(ctx context.Context, id string, in models.GoalInput) error {
	return r.update(ctx, bson.M{"_id": id, "submitted": false}, bson.M{"$set": bson.M{
		"title":       in.Title,
		"description": in.Description,
		"category":    in.Category,
		"status":      in.Status,
		"startDate":   in.StartDate,
		"endDate":     in.EndDate,
		"updatedAt":   time.Now(),
	}})
}

// DeleteGoal removes a goal that has not been submitted yet.
func (r *GoalRepository) DeleteGoal(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "submitted": false})
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Error("Failed to delete goal")
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if result.DeletedCount == 0 {
		return r.missOrChanged(ctx, id)
	}

	logger.Log.WithField("goal_id", id).Info("Goal deleted successfully")
	return nil
}

func (r *GoalRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, bson.M{"_id": id, "submitted": false}, bson.M{"$set": bson.M{
		"submitted":   true,
		"submittedAt": at,
		"updatedAt":   at,
	}})
}

// MarkApproved rates a submitted, not yet approved goal. An optional comment
// is appended in the same write.
func (r *GoalRepository) MarkApproved(ctx context.Context, id string, rating float64, by string, at time.Time, comment *models.Comment) error {
	update := bson.M{"$set": bson.M{
		"approved":   true,
		"approvedAt": at,
		"approvedBy": by,
		"rating":     rating,
		"updatedAt":  at,
	}}
	if comment != nil {
		update["$push"] = bson.M{"comments": comment}
	}
	return r.update(ctx, bson.M{"_id": id, "submitted": true, "approved": false}, update)
}

func (r *GoalRepository) AddComment(ctx context.Context, id string, comment models.Comment) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": comment.CreatedAt},
	})
}

// ListGoals returns matching goals, newest first.
func (r *GoalRepository) ListGoals(ctx context.Context, f GoalFilter) ([]*models.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, f.bson(), opts)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list goals")
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer cursor.Close(ctx)

	goals := []*models.Goal{}
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, fmt.Errorf("failed to decode goals: %w", err)
	}
	return goals, nil
}

func (r *GoalRepository) CountGoals(ctx context.Context, f GoalFilter) (int, error) {
	n, err := r.collection.CountDocuments(ctx, f.bson())
	if err != nil {
		return 0, fmt.Errorf("failed to count goals: %w", err)
	}
	return int(n), nil
}

func (r *GoalRepository) update(ctx context.Context, filter bson.M, update bson.M) error {
	id, _ := filter["_id"].(string)

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Error("Failed to update goal")
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missOrChanged(ctx, id)
	}

	logger.Log.WithField("goal_id", id).Info("Goal updated successfully")
	return nil
}

// missOrChanged tells an unknown goal apart from one whose state no longer
// satisfies a conditional write.
func (r *GoalRepository) missOrChanged(ctx context.Context, id string) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to look up goal: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStateChanged
}
