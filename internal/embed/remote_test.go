package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingsServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingsResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: make([]float32, dim), Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRemoteProviderEmbedDocuments(t *testing.T) {
	srv := embeddingsServer(t, 384)
	defer srv.Close()

	p, err := NewRemoteProvider(RemoteConfig{Endpoint: srv.URL, Model: "text-embedding-3-small", Dimension: 384})
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 384)
}

func TestRemoteProviderEmbedQuery(t *testing.T) {
	srv := embeddingsServer(t, 384)
	defer srv.Close()

	p, err := NewRemoteProvider(RemoteConfig{Endpoint: srv.URL, Model: "text-embedding-3-small", Dimension: 384})
	require.NoError(t, err)

	vector, err := p.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vector, 384)
}

func TestRemoteProviderRejectsEmptyInput(t *testing.T) {
	p, err := NewRemoteProvider(RemoteConfig{Endpoint: "http://unused", Model: "m", Dimension: 384})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRemoteProviderRejectsBadConfig(t *testing.T) {
	_, err := NewRemoteProvider(RemoteConfig{Model: "m", Dimension: 384})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRemoteProvider(RemoteConfig{Endpoint: "http://x", Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRemoteProviderRetriesOn5xxThenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewRemoteProvider(RemoteConfig{Endpoint: srv.URL, Model: "m", Dimension: 384})
	require.NoError(t, err)
	p.maxRetries = 1

	_, err = p.EmbedQuery(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}
