package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mergeRepository interface {
	Merge(ctx context.Context, oldID, newID string) (*dto.MergeResult, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// MergeService folds duplicate accounts into one.
type MergeService struct {
	repo    mergeRepository
	audit   auditWriter
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMergeService constructs the service.
func NewMergeService(repo mergeRepository, audit auditWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *MergeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeService{repo: repo, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// Merge moves everything owned by oldUserID to newUserID and deletes the old
// account. Merging an account into itself is a no-op.
func (s *MergeService) Merge(ctx context.Context, oldUserID, newUserID string) (*dto.MergeResult, error) {
	oldUserID = strings.TrimSpace(oldUserID)
	newUserID = strings.TrimSpace(newUserID)
	if oldUserID == "" {
		return nil, appErrors.Validation("oldUserId", "oldUserId is required")
	}
	if newUserID == "" {
		return nil, appErrors.Validation("newUserId", "newUserId is required")
	}

	result, err := s.repo.Merge(ctx, oldUserID, newUserID)
	if err != nil {
		s.metrics.RecordMerge("failed")
		switch {
		case errors.Is(err, repository.ErrMergeWinnerMissing):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target user not found")
		case errors.Is(err, repository.ErrMergeLoserMissing):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "source user not found")
		default:
			s.logger.Error("user merge failed",
				zap.String("old_user_id", oldUserID),
				zap.String("new_user_id", newUserID),
				zap.Error(err),
			)
			return nil, appErrors.Internal(err, "failed to merge users")
		}
	}
	if result.Skipped {
		s.metrics.RecordMerge("skipped")
		return result, nil
	}

	s.metrics.RecordMerge("merged")
	s.cache.InvalidateRosters(ctx)

	payload, _ := json.Marshal(result)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &newUserID,
		Action:     models.AuditActionUserMerge,
		Resource:   "user",
		ResourceID: &oldUserID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record merge audit log", zap.Error(err))
	}
	s.logger.Info("users merged",
		zap.String("old_user_id", oldUserID),
		zap.String("new_user_id", newUserID),
		zap.Any("discarded", result.Discarded),
		zap.Any("repointed", result.Repointed),
	)
	return result, nil
}
