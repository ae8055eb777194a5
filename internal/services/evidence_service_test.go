package services

import (
	"context"
	"strings"
	"testing"

	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceLifecycle(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"), apprentice("a2", "Ben"), supervisor("s1", "Sam"))
	ctx := context.Background()
	goal, err := f.goalSvc.CreateGoal(ctx, "a1", validGoalInput())
	require.NoError(t, err)

	file, err := f.evidenceSvc.Upload(ctx, "a1", goal.ID, "../../cert.pdf", 4, "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "cert.pdf", file.Name)
	assert.Equal(t, "a1/"+goal.ID+"/cert.pdf", file.Path)

	_, err = f.evidenceSvc.Upload(ctx, "a2", goal.ID, "x.pdf", 1, "application/pdf", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	files, err := f.evidenceSvc.List(ctx, "s1", goal.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "cert.pdf", files[0].Name)

	_, err = f.goalSvc.SubmitGoal(ctx, "a1", goal.ID)
	require.NoError(t, err)

	err = f.evidenceSvc.Delete(ctx, "a1", goal.ID, "cert.pdf")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	_, err = f.evidenceSvc.Upload(ctx, "a1", goal.ID, "late.pdf", 1, "application/pdf", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	files, err = f.evidenceSvc.List(ctx, "a1", goal.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1, "evidence is retained after submission")
}

func TestEvidenceDeleteBeforeSubmission(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))
	ctx := context.Background()
	goal, err := f.goalSvc.CreateGoal(ctx, "a1", validGoalInput())
	require.NoError(t, err)
	_, err = f.evidenceSvc.Upload(ctx, "a1", goal.ID, "cert.pdf", 1, "application/pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, f.evidenceSvc.Delete(ctx, "a1", goal.ID, "cert.pdf"))
	files, err := f.evidenceSvc.List(ctx, "a1", goal.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEvidenceValidation(t *testing.T) {
	f := newFixture(apprentice("a1", "Anna"))
	ctx := context.Background()

	_, err := f.evidenceSvc.Upload(ctx, "a1", "g", "", 1, "", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	_, err = f.evidenceSvc.Upload(ctx, "a1", "g", "big.bin", MaxEvidenceSize+1, "", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	unconfigured := NewEvidenceService(nil, f.goals, f.users)
	_, err = unconfigured.List(ctx, "a1", "g")
	assert.True(t, apperr.Is(err, apperr.CodeDependency))
}
