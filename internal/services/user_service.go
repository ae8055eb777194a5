package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dias221467/ZielManager/internal/mailer"
	"github.com/Dias221467/ZielManager/internal/models"
	"github.com/Dias221467/ZielManager/internal/repository"
	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/Dias221467/ZielManager/pkg/email"
	"github.com/Dias221467/ZielManager/pkg/jwt"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/validate"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const resetTokenTTL = time.Hour

type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=100,nocontrol"`
	LastName  string `json:"lastName" validate:"required,max=100,nocontrol"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type ProfileInput struct {
	FirstName string `json:"firstName" validate:"required,max=100,nocontrol"`
	LastName  string `json:"lastName" validate:"required,max=100,nocontrol"`
}

// GoalChecker runs the post-login goal check.
type GoalChecker interface {
	CheckUserGoals(ctx context.Context, user *models.User) (bool, error)
}

// TokenConfig controls issued access tokens.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
}

// UserService encapsulates the business logic for user operations.
type UserService struct {
	repo     UserStore
	goals    GoalChecker
	mail     Mailer
	renderer *mailer.Renderer
	tokens   TokenConfig
	now      func() time.Time
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo UserStore, goals GoalChecker, mail Mailer, renderer *mailer.Renderer, tokens TokenConfig) *UserService {
	return &UserService{
		repo:     repo,
		goals:    goals,
		mail:     mail,
		renderer: renderer,
		tokens:   tokens,
		now:      time.Now,
	}
}

// Register creates an unverified apprentice account and emails a
// verification link.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, in.Email); err == nil {
		logger.Log.WithField("email", in.Email).Warn("Email already in use")
		return nil, apperr.Conflict("email already in use")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, "user")
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}

	enabled := true
	user, err := s.repo.CreateUser(ctx, &models.User{
		FirstName:               strings.TrimSpace(in.FirstName),
		LastName:                strings.TrimSpace(in.LastName),
		Email:                   in.Email,
		Role:                    models.RoleApprentice,
		EmailNotifications:      &enabled,
		SupervisorRequestStatus: models.RequestStatusNone,
		HashedPassword:          string(hashedPwd),
		VerifyToken:             uuid.NewString(),
	})
	if err != nil {
		return nil, storeErr(err, "user")
	}

	subject, body, err := s.renderer.Verification(user.FirstName, user.VerifyToken)
	if err == nil {
		_, err = s.mail.Send(ctx, email.Message{To: user.Email, Subject: subject, HTML: body})
	}
	if err != nil {
		logger.Log.WithError(err).WithField("userID", user.ID).Warn("Failed to send verification email")
	}

	logger.Log.WithField("userID", user.ID).Info("User registered successfully")
	return user, nil
}

func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Validation("verification token is required")
	}
	user, err := s.repo.GetUserByVerificationToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Validation("invalid or expired verification token")
	}
	if err != nil {
		return storeErr(err, "user")
	}
	return storeErr(s.repo.MarkVerified(ctx, user.ID), "user")
}

// RequestPasswordReset emails a reset link. Unknown addresses succeed
// silently so the endpoint cannot be used to enumerate accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, address string) error {
	address = normalizeEmail(address)
	if address == "" {
		return apperr.Validation("email is required")
	}
	user, err := s.repo.GetUserByEmail(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Log.WithField("email", address).Info("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return storeErr(err, "user")
	}

	token := uuid.NewString()
	if err := s.repo.SetResetToken(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return storeErr(err, "user")
	}

	subject, body, err := s.renderer.PasswordReset(token)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to render reset email")
	}
	if _, err := s.mail.Send(ctx, email.Message{To: user.Email, Subject: subject, HTML: body}); err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "failed to send password reset email")
	}

	logger.Log.WithField("userID", user.ID).Info("Password reset email sent")
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 || len(newPassword) > 72 {
		return apperr.Validation("password must be between 8 and 72 characters")
	}
	user, err := s.repo.GetUserByResetToken(ctx, token)
	if token == "" || errors.Is(err, repository.ErrNotFound) {
		return apperr.Validation("invalid or expired reset token")
	}
	if err != nil {
		return storeErr(err, "user")
	}
	if s.now().After(user.ResetTokenExp) {
		return apperr.Validation("reset token has expired")
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}
	return storeErr(s.repo.UpdatePassword(ctx, user.ID, string(hashedPwd)), "user")
}

// Login verifies credentials and issues an access token. Apprentices with
// too few goals get a reminder; that check never fails the login.
func (s *UserService) Login(ctx context.Context, address, password string) (string, *models.User, error) {
	address = normalizeEmail(address)
	user, err := s.repo.GetUserByEmail(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return "", nil, storeErr(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		logger.Log.WithField("email", address).Warn("Invalid credentials")
		return "", nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsVerified {
		return "", nil, apperr.Forbidden("email not verified, please check your inbox")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.Role, s.tokens.Secret, s.tokens.Expiry)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeInternal, err, "failed to issue token")
	}

	if s.goals != nil {
		if _, err := s.goals.CheckUserGoals(ctx, user); err != nil {
			logger.Log.WithError(err).WithField("userID", user.ID).Warn("Goal check after login failed")
		}
	}

	logger.Log.WithField("userID", user.ID).Info("User authenticated successfully")
	return token, user, nil
}

// GetUser returns a profile to its owner or to a supervisor.
func (s *UserService) GetUser(ctx context.Context, actorID, id string) (*models.User, error) {
	if actorID != id {
		actor, err := s.repo.GetUserByID(ctx, actorID)
		if err != nil {
			return nil, storeErr(err, "user")
		}
		if !actor.IsSupervisor() {
			return nil, apperr.Forbidden("no access to this user")
		}
	}
	user, err := s.repo.GetUserByID(ctx, id)
	return user, storeErr(err, "user")
}

func (s *UserService) UpdateProfile(ctx context.Context, actorID, id string, in ProfileInput) (*models.User, error) {
	if actorID != id {
		return nil, apperr.Forbidden("users can only edit their own profile")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, id, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)); err != nil {
		return nil, storeErr(err, "user")
	}
	user, err := s.repo.GetUserByID(ctx, id)
	return user, storeErr(err, "user")
}

func (s *UserService) UpdateEmailPreference(ctx context.Context, actorID string, enable bool) error {
	if err := s.repo.SetEmailNotifications(ctx, actorID, enable); err != nil {
		return storeErr(err, "user")
	}
	logger.Log.WithFields(logrus.Fields{
		"userID":  actorID,
		"enabled": enable,
	}).Info("Email preference updated")
	return nil
}

// BecomeFirstSupervisor bootstraps an installation: while no supervisor
// exists the caller may promote themselves.
func (s *UserService) BecomeFirstSupervisor(ctx context.Context, actorID string) (*models.User, error) {
	supervisors, err := s.repo.ListUsersByRole(ctx, models.RoleSupervisor)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	if len(supervisors) > 0 {
		return nil, apperr.Conflict("a supervisor already exists")
	}
	if err := s.repo.PromoteToSupervisor(ctx, actorID, s.now()); err != nil {
		return nil, storeErr(err, "user")
	}

	logger.Log.WithField("userID", actorID).Info("First supervisor promoted")
	user, err := s.repo.GetUserByID(ctx, actorID)
	return user, storeErr(err, "user")
}

func (s *UserService) ListApprentices(ctx context.Context, actorID string) ([]*models.User, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if !actor.IsSupervisor() {
		return nil, apperr.Forbidden("only supervisors can list apprentices")
	}
	users, err := s.repo.ListUsersByRole(ctx, models.RoleApprentice)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
