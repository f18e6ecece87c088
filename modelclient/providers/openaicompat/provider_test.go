package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/types"
)

func TestProviderCompleteParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "gpt-test", body.Model)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Model: "gpt-test",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "hello from server"}, FinishReason: "stop"},
			},
			Usage: chatUsage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		})
	}))
	defer srv.Close()

	p := New(Config{ProviderName: "test", APIKey: "test-key", BaseURL: srv.URL})

	resp, err := p.Complete(context.Background(), modelclient.Request{
		Model:    "gpt-test",
		Messages: []modelclient.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello from server", resp.Text)
	require.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestProviderCompleteMapsRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	p := New(Config{ProviderName: "test", APIKey: "test-key", BaseURL: srv.URL})

	_, err := p.Complete(context.Background(), modelclient.Request{
		Model:    "gpt-test",
		Messages: []modelclient.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Equal(t, types.ErrThrottled, types.CodeOf(err))
	require.True(t, types.IsRetryable(err))
}

func TestProviderCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Model: "gpt-test"})
	}))
	defer srv.Close()

	p := New(Config{ProviderName: "test", APIKey: "test-key", BaseURL: srv.URL})

	_, err := p.Complete(context.Background(), modelclient.Request{
		Model:    "gpt-test",
		Messages: []modelclient.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Equal(t, types.ErrBadResponse, types.CodeOf(err))
}
