package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu       sync.Mutex
	subjects map[string]map[string]int
	nextID   int
	paths    []string
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	var body struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SchemaType != "JSON" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	const prefix = "/subjects/"
	subject := r.URL.Path[len(prefix):]
	register := false
	if n := len(subject) - len("/versions"); n > 0 && subject[n:] == "/versions" {
		subject = subject[:n]
		register = true
	}

	known := f.subjects[subject]
	if id, ok := known[body.Schema]; ok {
		_ = json.NewEncoder(w).Encode(map[string]any{"subject": subject, "id": id, "version": 1})
		return
	}
	if !register {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":40403,"message":"Schema not found"}`))
		return
	}
	if known == nil {
		known = map[string]int{}
		f.subjects[subject] = known
	}
	f.nextID++
	known[body.Schema] = f.nextID
	_ = json.NewEncoder(w).Encode(map[string]any{"id": f.nextID})
}

func TestSchemaRegistryRegistersUnknownSchemaOnce(t *testing.T) {
	registry := &fakeRegistry{subjects: map[string]map[string]int{}, nextID: 40}
	srv := httptest.NewServer(registry)
	t.Cleanup(srv.Close)

	client := NewSchemaRegistryClient(srv.URL)
	ctx := context.Background()

	id, err := client.EnsureSchema(ctx, "strava_activity_events-strava_activity.synced", stravaActivitySyncedSchema)
	require.NoError(t, err)
	require.Equal(t, 41, id)

	again, err := client.EnsureSchema(ctx, "strava_activity_events-strava_activity.synced", stravaActivitySyncedSchema)
	require.NoError(t, err)
	require.Equal(t, 41, again)

	other, err := client.EnsureSchema(ctx, "strava_activity_events-strava_activity.deleted", stravaActivityDeletedSchema)
	require.NoError(t, err)
	require.Equal(t, 42, other)

	require.Equal(t, []string{
		"/subjects/strava_activity_events-strava_activity.synced",
		"/subjects/strava_activity_events-strava_activity.synced/versions",
		"/subjects/strava_activity_events-strava_activity.synced",
		"/subjects/strava_activity_events-strava_activity.deleted",
		"/subjects/strava_activity_events-strava_activity.deleted/versions",
	}, registry.paths)
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":50001,"message":"Error in the backend data store"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "subject", stravaActivityDeletedSchema)
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}
