package payroll

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestClientLoadCachesWithinTTL(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[{"CODIGO_ZK_ATRIBUTO":"123","NOMBRE":"Ana"}]`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Hour, testLogger())

	records, err := client.Load(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ana", records[0].Name)

	_, err = client.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second load within TTL must not hit the feed")
}

func TestClientForceRefreshBypassesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Hour, testLogger())

	_, err := client.Load(context.Background(), false)
	require.NoError(t, err)
	_, err = client.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientServesStaleOnRefreshFailure(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			// 404 is not retried by the underlying client, so the
			// failure surfaces immediately.
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[{"CODIGO_ZK_ATRIBUTO":"123","NOMBRE":"Ana"}]`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Hour, testLogger())

	_, err := client.Load(context.Background(), false)
	require.NoError(t, err)

	fail.Store(true)
	records, err := client.Load(context.Background(), true)
	require.NoError(t, err, "stale data must be served when a refresh fails")
	require.Len(t, records, 1)
	assert.Equal(t, "Ana", records[0].Name)
}

func TestClientFirstFetchFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Hour, testLogger())

	_, err := client.Load(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load payroll employees")
}

func TestClientWithoutURL(t *testing.T) {
	client := New("", time.Second, time.Hour, testLogger())
	_, err := client.Load(context.Background(), false)
	require.Error(t, err)
}

func TestRegisterCard(t *testing.T) {
	var gotCode, gotCard string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCode = r.URL.Query().Get("codigo")
		gotCard = r.URL.Query().Get("tarjeta")
	}))
	defer server.Close()

	client := New(server.URL, time.Second, time.Hour, testLogger())
	require.NoError(t, client.RegisterCard(context.Background(), server.URL, " 00123 ", "5551234"))
	assert.Equal(t, "00123", gotCode)
	assert.Equal(t, "5551234", gotCard)

	err := client.RegisterCard(context.Background(), server.URL, "", "5551234")
	require.Error(t, err)
	err = client.RegisterCard(context.Background(), "", "00123", "5551234")
	require.Error(t, err)
}
