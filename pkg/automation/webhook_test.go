package automation_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, data map[string]any) *automation.Context {
	t.Helper()

	kase := newTestCase(t, data)
	workflow := &models.Workflow{ID: kase.WorkflowID, Phases: []string{"Pending", "Review"}}

	ectx, err := automation.NewContext(kase, workflow, models.TriggerOnEnter, "Pending", "Review")
	require.NoError(t, err)

	return ectx
}

func newDispatcher(t *testing.T) *automation.Dispatcher {
	t.Helper()

	return automation.NewDispatcher(5*time.Second, slog.Default())
}

func TestDispatcher_DefaultEnvelope(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	ectx := newTestContext(t, map[string]any{"v": 7.0})
	action := models.Action{Type: models.ActionWebhook, URL: server.URL}

	response, err := newDispatcher(t).Dispatch(context.Background(), action, ectx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"ok": true}, response)
	assert.Equal(t, ectx.Case.ID, received["case_id"])
	assert.Equal(t, "Pending", received["from_phase"])
	assert.Equal(t, "Review", received["to_phase"])
	assert.Equal(t, "on_enter", received["trigger"])
	assert.Equal(t, map[string]any{"v": 7.0}, received["data"])
}

func TestDispatcher_FieldSelection(t *testing.T) {
	t.Parallel()

	var received []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ectx := newTestContext(t, map[string]any{"v": 7.0, "other": "hidden"})
	action := models.Action{
		Type:   models.ActionWebhook,
		URL:    server.URL,
		Fields: []string{"data.v", "data.missing"},
	}

	_, err := newDispatcher(t).Dispatch(context.Background(), action, ectx)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"v": 7, "missing": null}}`, string(received))
}

func TestDispatcher_LiteralBodyAndHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "text/custom", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"hello": "world"}`, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain ack"))
	}))
	defer server.Close()

	ectx := newTestContext(t, nil)
	action := models.Action{
		Type:   models.ActionWebhook,
		URL:    server.URL,
		Method: "put",
		Body:   map[string]any{"hello": "world"},
		Headers: map[string]string{
			"Authorization": "Bearer token",
			"Content-Type":  "text/custom",
		},
	}

	response, err := newDispatcher(t).Dispatch(context.Background(), action, ectx)
	require.NoError(t, err)

	// Non-JSON responses come back as raw text.
	assert.Equal(t, "plain ack", response)
}

func TestDispatcher_ResponseChaining(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ectx := newTestContext(t, nil)
	ectx.Responses["A"] = map[string]any{"token": "X"}

	action := models.Action{
		Type:            models.ActionWebhook,
		URL:             server.URL,
		UseResponseFrom: "A",
	}

	_, err := newDispatcher(t).Dispatch(context.Background(), action, ectx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"token": "X"}, received["previous_response"])
}

func TestDispatcher_Retry(t *testing.T) {
	t.Parallel()

	t.Run("5xx retried up to max attempts", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		action := models.Action{
			Type:  models.ActionWebhook,
			URL:   server.URL,
			Retry: models.RetryConfig{Enabled: true, MaxAttempts: 2, DelayMS: 1},
		}

		_, err := newDispatcher(t).Dispatch(context.Background(), action, newTestContext(t, nil))
		require.Error(t, err)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("5xx succeeds after retry", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)

				return
			}

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		action := models.Action{
			Type:  models.ActionWebhook,
			URL:   server.URL,
			Retry: models.RetryConfig{Enabled: true, MaxAttempts: 3, DelayMS: 1},
		}

		response, err := newDispatcher(t).Dispatch(context.Background(), action, newTestContext(t, nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ok": true}, response)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("4xx is terminal", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		action := models.Action{
			Type:  models.ActionWebhook,
			URL:   server.URL,
			Retry: models.RetryConfig{Enabled: true, MaxAttempts: 5, DelayMS: 1},
		}

		_, err := newDispatcher(t).Dispatch(context.Background(), action, newTestContext(t, nil))
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("retry disabled issues one attempt", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		action := models.Action{Type: models.ActionWebhook, URL: server.URL}

		_, err := newDispatcher(t).Dispatch(context.Background(), action, newTestContext(t, nil))
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})
}
