package httputil

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, 201, map[string]string{"id": "7"})

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"7"}`, w.Body.String())
}

func TestWriteErrorCarriesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, "a source is required"))

	assert.Equal(t, 400, w.Code)
	assert.JSONEq(t, `{"error":"bad_request","error_description":"a source is required"}`, w.Body.String())
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("dsn=secret"))

	assert.Equal(t, 500, w.Code)
	assert.JSONEq(t, `{"error":"internal"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestDecode(t *testing.T) {
	type payload struct {
		Source string `json:"source"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"source":"10.0.0.1"}`))
	decoded, err := Decode[payload](r)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", decoded.Source)

	r = httptest.NewRequest("POST", "/", strings.NewReader("{"))
	_, err = Decode[payload](r)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}
