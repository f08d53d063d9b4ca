package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/derivia/orchepy/pkg/channels/gochannel"
	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/eventbus"
	"github.com/derivia/orchepy/pkg/events"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaseAndWorkflow(t *testing.T, webhookURL string) (*models.Workflow, *models.Case) {
	t.Helper()

	workflow := &models.Workflow{
		ID:           "wf-1",
		Name:         "Events",
		Phases:       []string{"A", "B"},
		InitialPhase: "A",
		WebhookURL:   webhookURL,
		Active:       true,
	}

	kase, err := models.NewCase(workflow.ID, "B", map[string]any{"k": "v"}, nil)
	require.NoError(t, err)

	return workflow, kase
}

func TestNotifier_CaseMovedEnvelope(t *testing.T) {
	t.Parallel()

	var received atomic.Pointer[events.CaseEvent]

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event events.CaseEvent

		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received.Store(&event)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow, kase := testCaseAndWorkflow(t, server.URL)

	notifier := events.NewNotifier(config.New(), nil, slog.Default())
	notifier.CaseMoved(context.Background(), workflow, kase, "A")

	event := received.Load()
	require.NotNil(t, event)
	assert.Equal(t, events.CaseMovedEvent, event.EventType)
	assert.Equal(t, kase.ID, event.Data.CaseID)
	assert.Equal(t, "wf-1", event.Data.WorkflowID)
	assert.Equal(t, "B", event.Data.ToPhase)
	require.NotNil(t, event.Data.FromPhase)
	assert.Equal(t, "A", *event.Data.FromPhase)
	assert.Equal(t, map[string]any{"k": "v"}, event.Data.CaseData)
}

func TestNotifier_CaseCreatedHasNullFromPhase(t *testing.T) {
	t.Parallel()

	var received atomic.Pointer[map[string]any]

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received.Store(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow, kase := testCaseAndWorkflow(t, server.URL)

	notifier := events.NewNotifier(config.New(), nil, slog.Default())
	notifier.CaseCreated(context.Background(), workflow, kase)

	body := received.Load()
	require.NotNil(t, body)
	assert.Equal(t, "case.created", (*body)["event_type"])

	data, ok := (*body)["data"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, data["from_phase"])
}

func TestNotifier_TogglesSuppressWebhook(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow, kase := testCaseAndWorkflow(t, server.URL)

	cfg := config.New()
	cfg.WebhookOnCaseMove = false

	notifier := events.NewNotifier(cfg, nil, slog.Default())
	notifier.CaseMoved(context.Background(), workflow, kase, "A")

	assert.Equal(t, int32(0), calls.Load())
}

func TestNotifier_RetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	workflow, kase := testCaseAndWorkflow(t, server.URL)

	notifier := events.NewNotifier(config.New(), nil, slog.Default())

	done := make(chan struct{})

	go func() {
		defer close(done)
		// Delivery failures never propagate to the caller.
		notifier.CaseMoved(context.Background(), workflow, kase, "A")
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("notifier did not finish")
	}

	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifier_PublishesToEventBus(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	receivedEvents := make(chan events.CaseEvent, 1)

	require.NoError(t, bus.Handle(events.CaseMovedEvent, func(_ context.Context, event any) error {
		caseEvent, ok := event.(events.CaseEvent)
		if ok {
			receivedEvents <- caseEvent
		}

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	workflow, kase := testCaseAndWorkflow(t, "")

	notifier := events.NewNotifier(config.New(), bus, slog.Default())
	notifier.CaseMoved(ctx, workflow, kase, "A")

	select {
	case event := <-receivedEvents:
		assert.Equal(t, kase.ID, event.Data.CaseID)
		assert.Equal(t, "B", event.Data.ToPhase)
	case <-time.After(5 * time.Second):
		t.Fatal("event never arrived on the bus")
	}
}
