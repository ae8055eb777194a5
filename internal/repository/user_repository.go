package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository handles database operations related to users.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user into the database.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		logger.Log.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Log.WithField("userID", user.ID).Info("User inserted successfully")
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByEmail retrieves a user by email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"verifyToken": token})
}

func (r *UserRepository) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"resetToken": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ListUsersByRole returns every user holding role.
func (r *UserRepository) ListUsersByRole(ctx context.Context, role string) ([]*models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"role": role})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users by role: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	for cursor.Next(ctx) {
		var user models.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, &user)
	}

	return users, cursor.Err()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"firstName": firstName, "lastName": lastName})
}

func (r *UserRepository) SetEmailNotifications(ctx context.Context, id string, enabled bool) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{
		"emailNotifications":       enabled,
		"emailPreferenceUpdatedAt": time.Now(),
	})
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"isVerified": true, "verifyToken": ""})
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"resetToken": token, "resetTokenExp": expires})
}

// UpdatePassword stores the new hash and invalidates the reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hashedPassword string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{
		"hashedPassword": hashedPassword,
		"resetToken":     "",
		"resetTokenExp":  time.Time{},
	})
}

// MarkSupervisorRequestPending moves an apprentice with no open request into
// the pending state.
func (r *UserRepository) MarkSupervisorRequestPending(ctx context.Context, id string, at time.Time) error {
	filter := bson.M{
		"_id":                     id,
		"role":                    models.RoleApprentice,
		"supervisorRequestStatus": bson.M{"$nin": bson.A{models.RequestStatusPending, models.RequestStatusApproved}},
	}
	return r.set(ctx, filter, bson.M{
		"supervisorRequestStatus": models.RequestStatusPending,
		"supervisorRequestDate":   at,
	})
}

// ResolveSupervisorRequest closes a pending request. Approval also promotes
// the user. The pending filter makes a second resolution fail with
// ErrStateChanged, so a role is never promoted twice.
func (r *UserRepository) ResolveSupervisorRequest(ctx context.Context, id string, approve bool, by string, at time.Time) error {
	fields := bson.M{
		"supervisorRequestProcessedAt": at,
		"supervisorRequestProcessedBy": by,
	}
	if approve {
		fields["supervisorRequestStatus"] = models.RequestStatusApproved
		fields["role"] = models.RoleSupervisor
		fields["roleUpdatedAt"] = at
		fields["roleUpdatedBy"] = by
	} else {
		fields["supervisorRequestStatus"] = models.RequestStatusDenied
	}

	return r.set(ctx, bson.M{"_id": id, "supervisorRequestStatus": models.RequestStatusPending}, fields)
}

// PromoteToSupervisor changes an apprentice's role directly.
func (r *UserRepository) PromoteToSupervisor(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, bson.M{"_id": id, "role": models.RoleApprentice}, bson.M{
		"role":          models.RoleSupervisor,
		"roleUpdatedAt": at,
	})
}

// set applies fields to the single document matching filter. A filter that
// matches nothing yields ErrNotFound when the id is unknown, ErrStateChanged
// when the document exists but fails the rest of the filter.
func (r *UserRepository) set(ctx context.Context, filter bson.M, fields bson.M) error {
	fields["updatedAt"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"userID": filter["_id"],
			"error":  err,
		}).Error("Failed to update user")
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		if len(filter) == 1 {
			return ErrNotFound
		}
		return ErrStateChanged
	}

	logger.Log.WithField("userID", filter["_id"]).Debug("User updated successfully")
	return nil
}
