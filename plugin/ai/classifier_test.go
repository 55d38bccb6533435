package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchtrail/watchtrail/store"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

// newTestClassifier points a classifier at a stub endpoint that answers per
// model name.
func newTestClassifier(t *testing.T, handler http.HandlerFunc) *Classifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/v1"
	cfg.APIKey = "sk-test"
	cfg.PrimaryModel = "primary-model"
	cfg.FallbackModel = "fallback-model"
	cfg.Referer = "https://watchtrail.example.com"
	return NewClassifier(cfg)
}

func decodeChatRequest(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	var req chatRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestCategorizeUsesPrimaryModel(t *testing.T) {
	var sawReferer, sawTitle string
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		sawReferer = r.Header.Get("HTTP-Referer")
		sawTitle = r.Header.Get("X-Title")
		req := decodeChatRequest(t, r)
		require.Equal(t, "primary-model", req.Model)
		json.NewEncoder(w).Encode(chatResponse(`{"category": "Music", "confidence": "high"}`))
	})

	result, err := classifier.Categorize(context.Background(), "lofi beats", "ChillChannel")
	require.NoError(t, err)
	require.Equal(t, "Music", result.Category)
	require.Equal(t, store.ConfidenceHigh, result.Confidence)
	require.Equal(t, "https://watchtrail.example.com", sawReferer)
	require.Equal(t, "Watchtrail", sawTitle)
}

func TestCategorizeFallsBackOnPrimaryFailure(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeChatRequest(t, r)
		if req.Model == "primary-model" {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(chatResponse("Here you go: {\"category\": \"Gaming\", \"confidence\": \"medium\"}"))
	})

	result, err := classifier.Categorize(context.Background(), "speedrun", "RunnerTV")
	require.NoError(t, err)
	require.Equal(t, "Gaming", result.Category)
	require.Equal(t, store.ConfidenceMedium, result.Confidence)
}

func TestCategorizeFallsBackOnMalformedJSON(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeChatRequest(t, r)
		if req.Model == "primary-model" {
			json.NewEncoder(w).Encode(chatResponse("I think it's probably music related."))
			return
		}
		json.NewEncoder(w).Encode(chatResponse(`{"category": "Music", "confidence": "low"}`))
	})

	result, err := classifier.Categorize(context.Background(), "lofi beats", "ChillChannel")
	require.NoError(t, err)
	require.Equal(t, "Music", result.Category)
}

func TestCategorizeBothModelsFailing(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	_, err := classifier.Categorize(context.Background(), "anything", "anywhere")
	require.Error(t, err)
}

func TestCategorizeRejectsUnknownCategory(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse(`{"category": "Cat Videos", "confidence": "high"}`))
	})

	_, err := classifier.Categorize(context.Background(), "cats", "CatTV")
	require.Error(t, err)
}

func TestVerifyKey(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse("OK!"))
	})
	require.NoError(t, classifier.VerifyKey(context.Background()))
}

func TestVerifyKeyRejectsUnexpectedResponse(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse("I cannot help with that."))
	})
	require.Error(t, classifier.VerifyKey(context.Background()))
}

func TestWeeklyReport(t *testing.T) {
	prose := "Overview\nYou watched a lot.\n\nPatterns\nMostly evenings.\n\nHighlights\nOne rewatch.\n\nReflection\nBalanced week."
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse(prose))
	})

	report, err := classifier.WeeklyReport(context.Background(), "total: 12 videos")
	require.NoError(t, err)
	require.Equal(t, prose, report)
}
