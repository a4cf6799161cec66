package suggestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func sampleRequest() Request {
	return Request{
		Target:           "issue_description",
		Subject:          "Schermo rotto",
		Product:          "iPhone 12",
		IssueDescription: "vetro incrinato",
		RequestedBy:      "mario",
	}
}

func TestSuggest_NotConfigured(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Endpoint: "   "},
		{Endpoint: "http://127.0.0.1:1", Provider: ProviderOpenAI},
	} {
		_, err := New(cfg, nil).Suggest(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotConfigured))
		assert.Equal(t, MsgNotConfigured, apperrors.ToDomainError(err).Message)
	}
}

func TestSuggest_GenericSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"suggestion": "  Sostituire il vetro  "})
	}))
	defer srv.Close()

	resp, err := New(Config{Endpoint: srv.URL, Token: "tok"}, nil).Suggest(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Sostituire il vetro", resp.Suggestion)
	assert.Equal(t, sampleRequest(), got)
}

func TestSuggest_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		message string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			message: MsgBadStatus,
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"advice":"x"}`))
			},
			message: MsgEmpty,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			message: MsgEmpty,
		},
		{
			name: "generic shape does not fall back",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			message: MsgBadStatus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(Config{Endpoint: srv.URL}, nil).Suggest(context.Background(), sampleRequest())
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstream))
			assert.Equal(t, tt.message, apperrors.ToDomainError(err).Message)
		})
	}
}

func TestSuggest_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, nil).Suggest(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstream))
	assert.Equal(t, MsgTimeout, apperrors.ToDomainError(err).Message)
}

func TestSuggest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{Endpoint: url}, nil).Suggest(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, MsgUnavailable, apperrors.ToDomainError(err).Message)
}

func TestSuggest_OpenAIFallsBackToChatCompletions(t *testing.T) {
	var responsesCalls, chatCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		switch r.URL.Path {
		case "/v1/responses":
			atomic.AddInt32(&responsesCalls, 1)
			w.WriteHeader(http.StatusNotFound)
		case "/v1/chat/completions":
			atomic.AddInt32(&chatCalls, 1)
			messages := body["messages"].([]any)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Controllare il connettore"}}]}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	cfg := Config{Endpoint: srv.URL + "/v1", Token: "k", Provider: "OpenAI", Model: "gpt-test"}
	resp, err := New(cfg, nil).Suggest(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Controllare il connettore", resp.Suggestion)
	assert.Equal(t, int32(1), atomic.LoadInt32(&responsesCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&chatCalls))
}

func TestSuggest_OpenAIPrimaryShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"Pulire i contatti"}]}]}`))
	}))
	defer srv.Close()

	resp, err := New(Config{Endpoint: srv.URL, Token: "k", Provider: ProviderOpenAI}, nil).Suggest(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Pulire i contatti", resp.Suggestion)
}

func TestSuggest_ServerErrorDoesNotFallBack(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL, Token: "k", Provider: ProviderOpenAI}, nil).Suggest(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstream))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUserPromptSkipsEmptyFields(t *testing.T) {
	prompt := userPrompt(Request{Target: "description", Subject: "Batteria"})
	assert.Contains(t, prompt, "Oggetto: Batteria")
	assert.NotContains(t, prompt, "Prodotto")
}
