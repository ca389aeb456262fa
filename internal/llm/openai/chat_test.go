package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func chatServer(t *testing.T, status int, reply map[string]any) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, DefaultModel, req.Model)
			prompts = append(prompts, req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestGenerate(t *testing.T) {
	srv, prompts := chatServer(t, http.StatusOK, map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": "Locking mitigates lost updates."},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})

	g, err := NewGenerator(Config{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), domain.Prompt{Text: "full prompt"})
	require.NoError(t, err)
	assert.Equal(t, "Locking mitigates lost updates.", text)
	assert.Equal(t, []string{"full prompt"}, *prompts)
}

func TestGenerate_NoChoices(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, map[string]any{"id": "x", "choices": []any{}})
	g, err := NewGenerator(Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), domain.Prompt{Text: "p"})
	assert.Error(t, err)
}

func TestGenerate_APIError(t *testing.T) {
	srv, _ := chatServer(t, http.StatusUnauthorized, map[string]any{
		"error": map[string]string{"message": "bad key", "type": "invalid_request_error"},
	})
	g, err := NewGenerator(Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), domain.Prompt{Text: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	t.Setenv("RAGQA_TEST_CHAT_KEY", "")
	_, err := NewGenerator(Config{APIKeyEnv: "RAGQA_TEST_CHAT_KEY"})
	assert.Error(t, err)

	t.Setenv("RAGQA_TEST_CHAT_KEY", "k")
	_, err = NewGenerator(Config{APIKeyEnv: "RAGQA_TEST_CHAT_KEY"})
	assert.NoError(t, err)
}
