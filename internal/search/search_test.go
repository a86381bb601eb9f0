package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEngine_FormatsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "go concurrency", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "google", r.URL.Query().Get("engines"), "empty engine falls back to the default")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"title": "Share Memory By Communicating", "url": "https://go.dev/blog/codelab-share", "content": "Goroutines and channels."},
			{"title": "Go Concurrency Patterns", "url": "https://go.dev/talks", "content": "Pipelines and cancellation."}
		]}`))
	}))
	defer server.Close()

	e := NewEngine(Config{Endpoint: server.URL, NumResults: 5}, zerolog.Nop())
	out := e.Search(context.Background(), "go concurrency", "", 0)

	assert.Contains(t, out, "1. Share Memory By Communicating")
	assert.Contains(t, out, "2. Go Concurrency Patterns")
	assert.Contains(t, out, "https://go.dev/talks")
}

func TestEngine_LimitsResultCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [
			{"title": "a"}, {"title": "b"}, {"title": "c"}
		]}`))
	}))
	defer server.Close()

	e := NewEngine(Config{Endpoint: server.URL, NumResults: 2}, zerolog.Nop())
	out := e.Search(context.Background(), "x", "", 0)

	assert.Contains(t, out, "1. a")
	assert.Contains(t, out, "2. b")
	assert.NotContains(t, out, "3. c")
}

func TestEngine_FailuresBecomeText(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: "status 500",
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>not json</html>"))
			},
			want: "unreadable",
		},
		{
			name: "no results",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"results": []}`))
			},
			want: "No results found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			e := NewEngine(Config{Endpoint: server.URL}, zerolog.Nop())
			out := e.Search(context.Background(), "anything", "", 0)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestEngine_PerQueryOverrides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "duckduckgo", r.URL.Query().Get("engines"))
		w.Write([]byte(`{"results": [{"title": "a"}, {"title": "b"}]}`))
	}))
	defer server.Close()

	e := NewEngine(Config{Endpoint: server.URL, NumResults: 5}, zerolog.Nop())
	out := e.Search(context.Background(), "x", "duckduckgo", 1)

	assert.Contains(t, out, "1. a")
	assert.NotContains(t, out, "2. b")
}

func TestEngine_UnconfiguredEndpoint(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	out := e.Search(context.Background(), "anything", "", 0)
	assert.Equal(t, "Web search is not configured.", out)
}
