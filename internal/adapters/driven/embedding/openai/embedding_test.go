package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeAPI serves /embeddings, returning for each input text "N" the
// vector [N, 1] and counting how many requests arrived.
func newFakeAPI(t *testing.T, requests *int, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests++
		*batchSizes = append(*batchSizes, len(req.Input))

		var resp embeddingResponse
		for i, text := range req.Input {
			n, err := strconv.Atoi(text)
			require.NoError(t, err)
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float64{float64(n), 1}, Index: i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestEmbedBatch_SplitsLargeInputs(t *testing.T) {
	var requests int
	var batchSizes []int
	server := newFakeAPI(t, &requests, &batchSizes)
	defer server.Close()

	svc, err := NewEmbeddingService(Config{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		BatchSize:         2,
		RequestsPerMinute: -1,
	})
	require.NoError(t, err)

	texts := []string{"0", "1", "2", "3", "4"}
	embeddings, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, embeddings, 5)

	assert.Equal(t, 3, requests)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)

	// Vectors come back normalised, so the ratio recovers the input.
	for i, vec := range embeddings {
		require.Len(t, vec, 2)
		require.NotZero(t, vec[1])
		assert.InDelta(t, float64(i), float64(vec[0]/vec[1]), 1e-5, "text %d out of order", i)
	}
}

func TestEmbedBatch_SingleRequestUnderBatchSize(t *testing.T) {
	var requests int
	var batchSizes []int
	server := newFakeAPI(t, &requests, &batchSizes)
	defer server.Close()

	svc, err := NewEmbeddingService(Config{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		RequestsPerMinute: -1,
	})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}
