package automation_test

import (
	"testing"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCase(t *testing.T, data map[string]any) *models.Case {
	t.Helper()

	kase, err := models.NewCase("wf-1", "Pending", data, map[string]any{"source": "api"})
	require.NoError(t, err)

	return kase
}

func TestDocument_Get(t *testing.T) {
	t.Parallel()

	kase := newTestCase(t, map[string]any{
		"amount": 500.0,
		"nested": map[string]any{"deep": "value"},
	})

	doc, err := automation.NewDocument(kase)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{"data field", "data.amount", 500.0},
		{"nested data field", "data.nested.deep", "value"},
		{"metadata field", "metadata.source", "api"},
		{"current phase", "current_phase", "Pending"},
		{"status", "status", "active"},
		{"missing field", "data.missing", nil},
		{"missing deep path", "data.missing.even.deeper", nil},
		{"previous phase of new case", "previous_phase", nil},
		{"empty path", "", nil},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, doc.Get(testCase.path))
		})
	}
}

func TestDocument_Set(t *testing.T) {
	t.Parallel()

	t.Run("write then read", func(t *testing.T) {
		t.Parallel()

		doc, err := automation.NewDocument(newTestCase(t, map[string]any{}))
		require.NoError(t, err)

		require.NoError(t, doc.Set("data.approved_by", "system"))
		assert.Equal(t, "system", doc.Get("data.approved_by"))
		assert.True(t, doc.Dirty())
	})

	t.Run("creates missing intermediates", func(t *testing.T) {
		t.Parallel()

		kase := newTestCase(t, map[string]any{})

		doc, err := automation.NewDocument(kase)
		require.NoError(t, err)

		require.NoError(t, doc.Set("data.review.verdict", "ok"))
		assert.Equal(t, "ok", doc.Get("data.review.verdict"))

		require.NoError(t, doc.Apply())
		review, ok := kase.Data["review"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ok", review["verdict"])
	})

	t.Run("write through non-object fails", func(t *testing.T) {
		t.Parallel()

		doc, err := automation.NewDocument(newTestCase(t, map[string]any{"amount": 500.0}))
		require.NoError(t, err)

		err = doc.Set("data.amount.currency", "EUR")
		require.ErrorIs(t, err, automation.ErrBadPath)
	})

	t.Run("write outside writable roots fails", func(t *testing.T) {
		t.Parallel()

		doc, err := automation.NewDocument(newTestCase(t, nil))
		require.NoError(t, err)

		require.ErrorIs(t, doc.Set("current_phase", "Hacked"), automation.ErrBadPath)
		require.ErrorIs(t, doc.Set("unknown_root.x", 1), automation.ErrBadPath)
	})

	t.Run("status write updates the case", func(t *testing.T) {
		t.Parallel()

		kase := newTestCase(t, nil)

		doc, err := automation.NewDocument(kase)
		require.NoError(t, err)

		require.NoError(t, doc.Set("status", "completed"))
		assert.Equal(t, models.CaseStatusCompleted, kase.Status)
		require.NotNil(t, kase.CompletedAt)

		require.ErrorIs(t, doc.Set("status", "nonsense"), automation.ErrBadPath)
	})

	t.Run("metadata is writable", func(t *testing.T) {
		t.Parallel()

		kase := newTestCase(t, nil)

		doc, err := automation.NewDocument(kase)
		require.NoError(t, err)

		require.NoError(t, doc.Set("metadata.flagged", true))
		require.NoError(t, doc.Apply())
		assert.Equal(t, true, kase.Metadata["flagged"])
	})
}
