package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/remote"
	"example.com/stravasync/internal/schema"
	"example.com/stravasync/internal/strava"
	httptransport "example.com/stravasync/internal/transport/http"
)

const (
	verifyToken    = "STRAVA"
	athleteID      = 134815
	subscriptionID = 120475
)

const validEvent = `{
  "aspect_type": "update",
  "event_time": 1516126040,
  "object_id": 1360128428,
  "object_type": "activity",
  "owner_id": 134815,
  "subscription_id": 120475,
  "updates": {"title": "Messy"}
}`

type stubEnqueuer struct {
	id    string
	err   error
	tasks []domain.QueuedTask
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, task domain.QueuedTask) (string, error) {
	s.tasks = append(s.tasks, task)
	return s.id, s.err
}

type stubProcessor struct {
	err   error
	tasks []domain.QueuedTask
	panic bool
}

func (s *stubProcessor) Process(ctx context.Context, task domain.QueuedTask) error {
	if s.panic {
		panic("unexpected")
	}
	s.tasks = append(s.tasks, task)
	return s.err
}

type stubDedupe struct {
	seen      map[string]bool
	forgotten []string
}

func (s *stubDedupe) FirstDelivery(ctx context.Context, key string) bool {
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

func (s *stubDedupe) Forget(ctx context.Context, key string) {
	delete(s.seen, key)
	s.forgotten = append(s.forgotten, key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(t *testing.T, enqueuer *stubEnqueuer, processor TaskProcessor, opts ...Option) http.Handler {
	t.Helper()
	contract, err := schema.StrictQueuedTask(athleteID, subscriptionID)
	require.NoError(t, err)

	h := NewHandler(verifyToken, enqueuer, processor, contract, append([]Option{WithLogger(discardLogger())}, opts...)...)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)
	return httptransport.Chain(mux, httptransport.Recover(discardLogger(), domain.CodeInternalError))
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))

	var payload map[string]string
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHandshake(t *testing.T) {
	h := newMux(t, &stubEnqueuer{}, &stubProcessor{})

	cases := []struct {
		name   string
		query  string
		status int
		body   map[string]string
	}{
		{name: "echoes challenge", query: "hub.mode=subscribe&hub.verify_token=STRAVA&hub.challenge=15f7d1a91c1f40f8a748fd134752feb3", status: http.StatusOK, body: map[string]string{"hub.challenge": "15f7d1a91c1f40f8a748fd134752feb3"}},
		{name: "missing token", query: "hub.mode=subscribe&hub.challenge=abc", status: http.StatusForbidden, body: map[string]string{"error": "MISSING_PARAMETERS"}},
		{name: "missing challenge", query: "hub.mode=subscribe&hub.verify_token=STRAVA", status: http.StatusForbidden, body: map[string]string{"error": "MISSING_PARAMETERS"}},
		{name: "wrong token", query: "hub.mode=subscribe&hub.verify_token=guess&hub.challenge=abc", status: http.StatusForbidden, body: map[string]string{"error": "INVALID_PARAMETERS"}},
		{name: "wrong mode", query: "hub.mode=unsubscribe&hub.verify_token=STRAVA&hub.challenge=abc", status: http.StatusForbidden, body: map[string]string{"error": "INVALID_PARAMETERS"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, "/webhook?"+tc.query, "")
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.body, body)
			require.NotContains(t, rec.Body.String(), verifyToken)
		})
	}
}

func TestReceiveEventForwardsOnce(t *testing.T) {
	enqueuer := &stubEnqueuer{id: "msg_1"}
	h := newMux(t, enqueuer, &stubProcessor{})

	before := testutil.ToFloat64(webhookEvents.WithLabelValues(domain.CodeEventReceived))
	rec, body := do(t, h, http.MethodPost, "/webhook", validEvent)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]string{"message": "EVENT_RECEIVED"}, body)
	require.Equal(t, []domain.QueuedTask{{
		ObjectType:     "activity",
		ObjectID:       1360128428,
		AspectType:     "update",
		OwnerID:        athleteID,
		SubscriptionID: subscriptionID,
	}}, enqueuer.tasks)
	require.InDelta(t, before+1, testutil.ToFloat64(webhookEvents.WithLabelValues(domain.CodeEventReceived)), 0.0001)
}

func TestReceiveEventRejectsInvalidBodiesWithoutEnqueueing(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"object_type":`,
		"missing field":  `{"object_type":"activity","object_id":1,"aspect_type":"create","owner_id":1,"subscription_id":1}`,
		"bad aspect":     `{"object_type":"activity","object_id":1,"aspect_type":"rename","owner_id":1,"subscription_id":1,"event_time":1}`,
		"string id":      `{"object_type":"activity","object_id":"1","aspect_type":"create","owner_id":1,"subscription_id":1,"event_time":1}`,
		"unknown object": `{"object_type":"club","object_id":1,"aspect_type":"create","owner_id":1,"subscription_id":1,"event_time":1}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			enqueuer := &stubEnqueuer{id: "msg_1"}
			h := newMux(t, enqueuer, &stubProcessor{})

			rec, body := do(t, h, http.MethodPost, "/webhook", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, map[string]string{"message": "INVALID_REQUEST_BODY"}, body)
			require.Empty(t, enqueuer.tasks)
		})
	}
}

func TestReceiveEventDeliveryFailures(t *testing.T) {
	cases := map[string]*stubEnqueuer{
		"queue error":   {err: errors.New("unsuccessful response")},
		"empty receipt": {id: ""},
	}

	for name, enqueuer := range cases {
		t.Run(name, func(t *testing.T) {
			dedupe := &stubDedupe{seen: map[string]bool{}}
			h := newMux(t, enqueuer, &stubProcessor{}, WithDeduplicator(dedupe))

			rec, body := do(t, h, http.MethodPost, "/webhook", validEvent)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, map[string]string{"message": "DELIVERY_FAILED"}, body)
			require.Equal(t, []string{"activity:1360128428:update:1516126040"}, dedupe.forgotten)
		})
	}
}

func TestReceiveEventAcknowledgesDuplicates(t *testing.T) {
	enqueuer := &stubEnqueuer{id: "msg_1"}
	dedupe := &stubDedupe{seen: map[string]bool{}}
	h := newMux(t, enqueuer, &stubProcessor{}, WithDeduplicator(dedupe))

	for i := 0; i < 3; i++ {
		rec, body := do(t, h, http.MethodPost, "/webhook", validEvent)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, map[string]string{"message": "EVENT_RECEIVED"}, body)
	}
	require.Len(t, enqueuer.tasks, 1)
}

func TestProcessTaskResults(t *testing.T) {
	task := `{"object_type":"activity","object_id":42,"aspect_type":"create","owner_id":134815,"subscription_id":120475}`

	cases := []struct {
		name   string
		err    error
		status int
		body   map[string]string
	}{
		{name: "saved", status: http.StatusOK, body: map[string]string{"message": "ACTIVITY_SAVED"}},
		{name: "invalid object type", err: &domain.TaskError{Code: domain.CodeInvalidObjectType}, status: http.StatusBadRequest, body: map[string]string{"error": "INVALID_OBJECT_TYPE"}},
		{name: "not found", err: &domain.TaskError{Code: domain.CodeActivityNotFound}, status: http.StatusInternalServerError, body: map[string]string{"error": "ACTIVITY_NOT_FOUND"}},
		{name: "not created", err: &domain.TaskError{Code: domain.CodeActivityNotCreated}, status: http.StatusInternalServerError, body: map[string]string{"error": "ACTIVITY_NOT_CREATED"}},
		{name: "not deleted", err: &domain.TaskError{Code: domain.CodeActivityNotDeleted}, status: http.StatusInternalServerError, body: map[string]string{"error": "ACTIVITY_NOT_DELETED"}},
		{name: "invalid aspect", err: &domain.TaskError{Code: domain.CodeInvalidAspectType}, status: http.StatusInternalServerError, body: map[string]string{"error": "INVALID_ASPECT_TYPE"}},
		{name: "uncoded", err: errors.New("boom"), status: http.StatusInternalServerError, body: map[string]string{"error": "INTERNAL_ERROR"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processor := &stubProcessor{err: tc.err}
			h := newMux(t, &stubEnqueuer{}, processor)

			rec, body := do(t, h, http.MethodPost, "/tasks/activities", task)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.body, body)
			require.Len(t, processor.tasks, 1)
		})
	}
}

func TestProcessTaskRejectsForeignAccounts(t *testing.T) {
	cases := map[string]string{
		"other athlete":      `{"object_type":"activity","object_id":42,"aspect_type":"create","owner_id":1,"subscription_id":120475}`,
		"other subscription": `{"object_type":"activity","object_id":42,"aspect_type":"create","owner_id":134815,"subscription_id":1}`,
		"malformed":          `not json`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			processor := &stubProcessor{}
			h := newMux(t, &stubEnqueuer{}, processor)

			rec, body := do(t, h, http.MethodPost, "/tasks/activities", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, map[string]string{"error": "INVALID_REQUEST_BODY"}, body)
			require.Empty(t, processor.tasks)
		})
	}
}

func TestProcessTaskRecoversPanics(t *testing.T) {
	h := newMux(t, &stubEnqueuer{}, &stubProcessor{panic: true})

	rec, body := do(t, h, http.MethodPost, "/tasks/activities",
		`{"object_type":"activity","object_id":42,"aspect_type":"delete","owner_id":134815,"subscription_id":120475}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, map[string]string{"error": "INTERNAL_ERROR"}, body)
}

type recordingStore struct {
	upserts int
	removes int
}

func (s *recordingStore) Upsert(ctx context.Context, record domain.ActivityRecord) (string, error) {
	s.upserts++
	return "id", nil
}

func (s *recordingStore) Remove(ctx context.Context, stravaID int64) (domain.RemoveResult, error) {
	s.removes++
	return domain.RemoveResult{OK: true}, nil
}

// newStravaAPI serves the token endpoint and answers every activity lookup with a 404.
func newStravaAPI(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	lookups := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer","access_token":"at-1","expires_at":1710064800,"expires_in":21600,"refresh_token":"rt-1"}`))
	})
	mux.HandleFunc("GET /api/v3/activities/{id}", func(w http.ResponseWriter, r *http.Request) {
		lookups++
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Record Not Found","errors":[{"resource":"Activity","field":"id","code":"not found"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lookups
}

func TestCreateTaskForMissingActivityLeavesStoreUntouched(t *testing.T) {
	srv, lookups := newStravaAPI(t)
	client := remote.NewClient(nil, 5*time.Second)
	refresher := strava.NewRefresher(client, config.StravaConfig{
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		RefreshToken: "rt-1",
	}, discardLogger())
	fetcher := strava.NewClient(client, srv.URL+"/api/v3", refresher, discardLogger())

	store := &recordingStore{}
	service := domain.NewService(fetcher, store, discardLogger())
	h := newMux(t, &stubEnqueuer{}, service)

	rec, body := do(t, h, http.MethodPost, "/tasks/activities",
		`{"object_type":"activity","object_id":42,"aspect_type":"create","owner_id":134815,"subscription_id":120475}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, map[string]string{"error": "ACTIVITY_NOT_FOUND"}, body)
	require.Equal(t, 1, *lookups)
	require.Zero(t, store.upserts)
	require.Zero(t, store.removes)
}

func TestRoutesRejectOtherMethods(t *testing.T) {
	h := newMux(t, &stubEnqueuer{}, &stubProcessor{})

	rec, _ := do(t, h, http.MethodDelete, "/webhook", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
