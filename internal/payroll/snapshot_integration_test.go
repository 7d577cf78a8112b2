//go:build integration

package payroll_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karlutxo/zk-tools/internal/payroll"
	"github.com/karlutxo/zk-tools/pkg/testutil/containers"
)

func TestSnapshotSurvivesRestart(t *testing.T) {
	redisClient := containers.Redis(t)

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"CODIGO_ZK_ATRIBUTO":"00123","NOMBRE":"Ana"}]`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := payroll.New(server.URL, time.Second, time.Hour, logger, payroll.WithSnapshot(redisClient))
	records, err := first.Load(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// A fresh client stands in for a process restart: the snapshot must
	// serve the feed without another fetch.
	second := payroll.New(server.URL, time.Second, time.Hour, logger, payroll.WithSnapshot(redisClient))
	records, err = second.Load(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "00123", records[0].Code)
	assert.Equal(t, 1, calls)
}
