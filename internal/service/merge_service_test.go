package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mergeRepoStub struct {
	result *dto.MergeResult
	err    error
	calls  int
}

func (s *mergeRepoStub) Merge(ctx context.Context, oldID, newID string) (*dto.MergeResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &dto.MergeResult{OldUserID: oldID, NewUserID: newID, Skipped: oldID == newID}, nil
}

func TestMergeRecordsAudit(t *testing.T) {
	repo := &mergeRepoStub{}
	audit := newUserRepoStub()
	svc := NewMergeService(repo, audit, nil, NewMetricsService(), nil)

	result, err := svc.Merge(context.Background(), " old ", "new")
	require.NoError(t, err)
	assert.Equal(t, "old", result.OldUserID)
	require.Len(t, audit.auditLogs, 1)
	assert.Equal(t, "new", *audit.auditLogs[0].UserID)
	assert.Equal(t, "old", *audit.auditLogs[0].ResourceID)
}

func TestMergeSameUserSkipsAudit(t *testing.T) {
	audit := newUserRepoStub()
	svc := NewMergeService(&mergeRepoStub{}, audit, nil, nil, nil)

	result, err := svc.Merge(context.Background(), "u1", "u1")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, audit.auditLogs)
}

func TestMergeMapsMissingUsers(t *testing.T) {
	cases := map[string]error{
		"target user not found": repository.ErrMergeWinnerMissing,
		"source user not found": fmt.Errorf("wrapped: %w", repository.ErrMergeLoserMissing),
	}
	for message, repoErr := range cases {
		svc := NewMergeService(&mergeRepoStub{err: repoErr}, newUserRepoStub(), nil, nil, nil)
		_, err := svc.Merge(context.Background(), "old", "new")
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
		assert.Equal(t, message, appErr.Message)
	}
}

func TestMergeDatabaseFailureIsInternal(t *testing.T) {
	svc := NewMergeService(&mergeRepoStub{err: errors.New("connection reset")}, newUserRepoStub(), nil, nil, nil)

	_, err := svc.Merge(context.Background(), "old", "new")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestMergeRequiresIDs(t *testing.T) {
	repo := &mergeRepoStub{}
	svc := NewMergeService(repo, newUserRepoStub(), nil, nil, nil)

	_, err := svc.Merge(context.Background(), "", "new")
	assert.Equal(t, "oldUserId", appErrors.FromError(err).Field)
	_, err = svc.Merge(context.Background(), "old", " ")
	assert.Equal(t, "newUserId", appErrors.FromError(err).Field)
	assert.Zero(t, repo.calls)
}
