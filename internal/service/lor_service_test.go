package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type letterStub struct {
	got export.Letter
}

func (r *letterStub) RenderLetter(l export.Letter) ([]byte, error) {
	r.got = l
	return []byte("%PDF-stub"), nil
}

func TestLORLetterForUnlockedMember(t *testing.T) {
	teams := leaderFixture()
	teams[1].Members[2].ProjectName = "Capstone"
	users := newUserRepoStub(
		models.User{ID: "S2", Name: "Sam Two"},
		models.User{ID: "X", Name: "Xavier"},
	)
	renderer := &letterStub{}
	svc := NewLORService(&teamRepoStub{teams: teams}, users, renderer, nil)

	file, err := svc.Letter(context.Background(), "S2", "team2")
	require.NoError(t, err)
	assert.Equal(t, "lor-team2.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "Sam Two", renderer.got.StudentName)
	assert.Equal(t, "Team Two", renderer.got.TeamName)
	assert.Equal(t, "Capstone", renderer.got.ProjectName)
	assert.Equal(t, 30, renderer.got.Progress)
	assert.Equal(t, "Xavier", renderer.got.LeaderName)
}

func TestLORLetterLockedOrNotMember(t *testing.T) {
	svc := NewLORService(&teamRepoStub{teams: leaderFixture()}, newUserRepoStub(), &letterStub{}, nil)
	ctx := context.Background()

	_, err := svc.Letter(ctx, "S1", "team2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Letter(ctx, "X", "team2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Letter(ctx, "S2", "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLORLetterRendersRealPDF(t *testing.T) {
	users := newUserRepoStub(models.User{ID: "S2", Name: "Sam Two"})
	svc := NewLORService(&teamRepoStub{teams: leaderFixture()}, users, nil, nil)

	file, err := svc.Letter(context.Background(), "S2", "team2")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}
