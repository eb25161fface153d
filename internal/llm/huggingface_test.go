package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceProvider_Classify_SortsByScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+huggingFaceDefaultClassifyModel, r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))

		var req hfClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, SafetyLabels, req.Parameters.CandidateLabels)

		_ = json.NewEncoder(w).Encode(hfClassifyResponse{
			Sequence: req.Inputs,
			Labels:   []string{"generally safe", "use with caution", "potentially unsafe"},
			Scores:   []float64{0.2, 0.7, 0.1},
		})
	}))
	defer server.Close()

	provider, err := NewHuggingFaceProvider(Config{APIKey: "hf-key", BaseURL: server.URL, Timeout: 5})
	require.NoError(t, err)

	c, err := provider.Classify(context.Background(), "St. John's Wort", SafetyLabels)
	require.NoError(t, err)

	label, score, ok := c.Top()
	require.True(t, ok)
	assert.Equal(t, "use with caution", label)
	assert.InDelta(t, 0.7, score, 1e-9)
	assert.Equal(t, []float64{0.7, 0.2, 0.1}, c.Scores)
}

func TestHuggingFaceProvider_Classify_Mismatched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels": ["a", "b"], "scores": [1.0]}`))
	}))
	defer server.Close()

	provider, _ := NewHuggingFaceProvider(Config{APIKey: "hf-key", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Classify(context.Background(), "x", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestHuggingFaceProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/custom/model", r.URL.Path)
		var req hfGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Parameters.ReturnFullText)
		assert.True(t, req.Options.WaitForModel)

		_, _ = w.Write([]byte(`[{"generated_text": " A focused formula. "}]`))
	}))
	defer server.Close()

	provider, _ := NewHuggingFaceProvider(Config{APIKey: "hf-key", BaseURL: server.URL, Model: "custom/model", Timeout: 5})

	resp, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "Explain"})
	require.NoError(t, err)
	assert.Equal(t, "A focused formula.", resp.Text)
	assert.Equal(t, "custom/model", resp.Model)
}

func TestHuggingFaceProvider_ModelLoadingIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "Model is currently loading", "estimated_time": 20}`))
	}))
	defer server.Close()

	provider, _ := NewHuggingFaceProvider(Config{APIKey: "hf-key", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currently loading")
}
