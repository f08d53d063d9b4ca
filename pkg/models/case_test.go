package models_test

import (
	"testing"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCase(t *testing.T) {
	t.Parallel()

	kase, err := models.NewCase("wf-1", "Pending", map[string]any{"amount": 100.0}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, kase.ID)
	assert.Equal(t, "Pending", kase.CurrentPhase)
	assert.Nil(t, kase.PreviousPhase)
	assert.Equal(t, models.CaseStatusActive, kase.Status)
	assert.Equal(t, kase.CreatedAt, kase.PhaseEnteredAt)
}

func TestCase_MoveToPhase(t *testing.T) {
	t.Parallel()

	kase, err := models.NewCase("wf-1", "Pending", nil, nil)
	require.NoError(t, err)

	entered := kase.PhaseEnteredAt

	kase.MoveToPhase("Review")

	assert.Equal(t, "Review", kase.CurrentPhase)
	require.NotNil(t, kase.PreviousPhase)
	assert.Equal(t, "Pending", *kase.PreviousPhase)
	assert.False(t, kase.PhaseEnteredAt.Before(entered))
}

func TestCase_MergeData(t *testing.T) {
	t.Parallel()

	kase, err := models.NewCase("wf-1", "Pending", map[string]any{"a": 1.0, "b": "keep"}, nil)
	require.NoError(t, err)

	kase.MergeData(map[string]any{"a": 2.0, "c": true})

	assert.Equal(t, 2.0, kase.Data["a"])
	assert.Equal(t, "keep", kase.Data["b"])
	assert.Equal(t, true, kase.Data["c"])
}

func TestCase_SetStatus(t *testing.T) {
	t.Parallel()

	kase, err := models.NewCase("wf-1", "Pending", nil, nil)
	require.NoError(t, err)

	kase.SetStatus(models.CaseStatusCompleted)
	require.NotNil(t, kase.CompletedAt)

	kase.SetStatus(models.CaseStatusActive)
	assert.Nil(t, kase.CompletedAt)
}
