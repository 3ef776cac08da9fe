package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/compliance/internal/ports/secondary"
)

func TestFactSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/enrollments/ENR-001/facts":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"completed_all_modules":true,"passed_all_quizzes":false,"overall_score":72.5}`))
		case "/enrollments/ENR-500/facts":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/enrollments/ENR-BAD/facts":
			w.Write([]byte(`not json`))
		case "/enrollments/ENR-EMPTY/facts":
			w.Write([]byte(`{}`))
		case "/enrollments/ENR-NULL/facts":
			w.Write([]byte(`null`))
		case "/enrollments/ENR-RENAMED/facts":
			w.Write([]byte(`{"completed":true,"score":95}`))
		case "/enrollments/ENR-PARTIAL/facts":
			w.Write([]byte(`{"completed_all_modules":true,"passed_all_quizzes":true}`))
		case "/enrollments/ENR-ZERO/facts":
			w.Write([]byte(`{"completed_all_modules":false,"passed_all_quizzes":false,"overall_score":0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source := NewFactSource(server.URL+"/", "secret", time.Second)
	ctx := context.Background()

	t.Run("decodes facts", func(t *testing.T) {
		facts, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-001"})
		require.NoError(t, err)
		assert.True(t, facts.CompletedAllModules)
		assert.False(t, facts.PassedAllQuizzes)
		assert.Equal(t, 72.5, facts.OverallScore)
	})

	t.Run("404 maps to not found", func(t *testing.T) {
		_, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-404"})
		require.ErrorIs(t, err, secondary.ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-500"})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
		assert.Contains(t, statusErr.Body, "boom")
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-BAD"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})

	t.Run("incomplete bodies are rejected", func(t *testing.T) {
		for _, id := range []string{"ENR-EMPTY", "ENR-NULL", "ENR-RENAMED", "ENR-PARTIAL"} {
			facts, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: id})
			require.ErrorIs(t, err, ErrMalformedFacts, id)
			assert.Nil(t, facts, id)
		}
	})

	t.Run("explicit zero values are facts", func(t *testing.T) {
		facts, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-ZERO"})
		require.NoError(t, err)
		assert.Equal(t, secondary.FactsRecord{}, *facts)
	})

	t.Run("missing token is rejected upstream", func(t *testing.T) {
		_, err := NewFactSource(server.URL, "", time.Second).Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-001"})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	})
}

func TestFactSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	source := NewFactSource(server.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := source.Fetch(context.Background(), &secondary.EnrollmentRecord{ID: "ENR-001"})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFactSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFactSource("http://127.0.0.1:1", "", time.Second).Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-001"})

	require.ErrorIs(t, err, context.Canceled)
}

func TestRequestTimeout(t *testing.T) {
	got, err := requestTimeout(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err = requestTimeout(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, got, time.Second)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	_, err = requestTimeout(expired, 5*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWebhookNotifier_Notify(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []transitionPayload
		keys     []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p transitionPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		payloads = append(payloads, p)
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	occurred := time.Date(2026, 3, 9, 6, 30, 0, 0, time.UTC)
	notifier := NewWebhookNotifier(server.URL, time.Second)
	err := notifier.Notify(context.Background(), &secondary.EscalationEventRecord{
		ID:           "EVT-1",
		EnrollmentID: "ENR-001",
		FromLevel:    "non_compliant",
		ToLevel:      "escalated_l1",
		Reason:       "non-compliant ≥7d",
		OccurredAt:   occurred,
		TriggeredBy:  "system",
		RunID:        "run-1",
		NotifyRole:   "manager",
	})
	require.NoError(t, err)

	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"EVT-1"}, keys)
	assert.Equal(t, "escalated_l1", payloads[0].ToLevel)
	assert.Equal(t, "manager", payloads[0].NotifyRole)
	assert.True(t, payloads[0].OccurredAt.Equal(occurred))
	assert.Empty(t, payloads[0].ActorID)
}

func TestWebhookNotifier_RejectedDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL, time.Second).Notify(context.Background(), &secondary.EscalationEventRecord{ID: "EVT-1"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}
