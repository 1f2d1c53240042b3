package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	DeleteCascade(ctx context.Context, id string) (map[string]int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService provisions and removes local user records mirrored from the
// identity provider.
type UserService struct {
	repo   userRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, cache *CacheService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, cache: cache, logger: logger}
}

// EnsureUser returns the local user for claims, creating it on first sight
// and refreshing profile fields that changed upstream.
func (s *UserService) EnsureUser(ctx context.Context, claims *models.JWTClaims) (*models.User, error) {
	id := claims.CallerID()
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err == nil {
		if profileChanged(user, claims) {
			if err := s.repo.UpdateProfile(ctx, user); err != nil {
				s.logger.Warn("failed to refresh user profile", zap.String("user_id", id), zap.Error(err))
			}
		}
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load user")
	}

	role := claims.Role
	if !role.Valid() {
		role = models.RoleStudent
	}
	user = &models.User{
		ID:       id,
		Name:     claims.Name,
		Email:    claims.Email,
		ImageURL: claims.ImageURL,
		Role:     role,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to provision user")
	}
	if !created {
		// a concurrent request provisioned the same user first
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load user")
		}
		return existing, nil
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &id,
		Action:     models.AuditActionUserProvision,
		Resource:   "user",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record provision audit log", zap.Error(err))
	}
	s.logger.Info("user provisioned", zap.String("user_id", id), zap.String("role", string(role)))
	return user, nil
}

func profileChanged(user *models.User, claims *models.JWTClaims) bool {
	changed := false
	if claims.Name != "" && claims.Name != user.Name {
		user.Name = claims.Name
		changed = true
	}
	if claims.Email != "" && claims.Email != user.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.ImageURL != "" && claims.ImageURL != user.ImageURL {
		user.ImageURL = claims.ImageURL
		changed = true
	}
	return changed
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Delete removes a user and everything that references them.
func (s *UserService) Delete(ctx context.Context, id string) (*dto.DeleteResult, error) {
	if id == "" {
		return nil, appErrors.Validation("id", "user id is required")
	}
	deleted, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to delete user")
	}
	s.cache.InvalidateRosters(ctx)

	result := &dto.DeleteResult{UserID: id, Deleted: deleted}
	payload, _ := json.Marshal(result)
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionUserDelete,
		Resource:   "user",
		ResourceID: &id,
		OldValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record delete audit log", zap.Error(err))
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.Any("rows", deleted))
	return result, nil
}
