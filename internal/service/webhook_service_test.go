package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type deleterStub struct {
	ids []string
}

func (d *deleterStub) Delete(ctx context.Context, id string) (*dto.DeleteResult, error) {
	d.ids = append(d.ids, id)
	return &dto.DeleteResult{UserID: id, Deleted: map[string]int{"users": 1}}, nil
}

type mergerStub struct {
	pairs [][2]string
}

func (m *mergerStub) Merge(ctx context.Context, oldUserID, newUserID string) (*dto.MergeResult, error) {
	m.pairs = append(m.pairs, [2]string{oldUserID, newUserID})
	return &dto.MergeResult{OldUserID: oldUserID, NewUserID: newUserID}, nil
}

func TestWebhookUserDeleted(t *testing.T) {
	deleter := &deleterStub{}
	svc := NewWebhookService("s3cret", deleter, &mergerStub{}, nil, nil)
	body := []byte(`{"type":"user.deleted","data":{"id":"u1"}}`)

	out, err := svc.Handle(context.Background(), body, "sha256="+svc.Sign(body))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, deleter.ids)
	result, ok := out.(*dto.DeleteResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Deleted["users"])
}

func TestWebhookUserMerged(t *testing.T) {
	merger := &mergerStub{}
	svc := NewWebhookService("s3cret", &deleterStub{}, merger, nil, nil)
	body := []byte(`{"type":"user.merged","data":{"oldUserId":"old","newUserId":"new"}}`)

	_, err := svc.Handle(context.Background(), body, svc.Sign(body))
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"old", "new"}}, merger.pairs)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	deleter := &deleterStub{}
	svc := NewWebhookService("s3cret", deleter, &mergerStub{}, nil, nil)
	body := []byte(`{"type":"user.deleted","data":{"id":"u1"}}`)

	_, err := svc.Handle(context.Background(), body, "deadbeef")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.Handle(context.Background(), body, "")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, deleter.ids)

	unconfigured := NewWebhookService("", deleter, &mergerStub{}, nil, nil)
	_, err = unconfigured.Handle(context.Background(), body, "x")
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
}

func TestWebhookPayloadValidation(t *testing.T) {
	svc := NewWebhookService("s3cret", &deleterStub{}, &mergerStub{}, nil, nil)
	cases := []string{
		`not json`,
		`{"type":"user.deleted"}`,
		`{"type":"user.deleted","data":{}}`,
		`{"type":"user.merged","data":{"oldUserId":"a"}}`,
	}
	for _, raw := range cases {
		body := []byte(raw)
		_, err := svc.Handle(context.Background(), body, svc.Sign(body))
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, raw)
	}
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	deleter := &deleterStub{}
	svc := NewWebhookService("s3cret", deleter, &mergerStub{}, nil, nil)
	body := []byte(`{"type":"session.created","data":{"id":"s"}}`)

	out, err := svc.Handle(context.Background(), body, svc.Sign(body))
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, deleter.ids)
}
