package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReference(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.wav")
	require.NoError(t, os.WriteFile(path, []byte("reference-audio"), 0o644))
	return path
}

func scoreServer(score string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score": ` + score + `}`))
	}))
}

func TestVerifier_AcceptsAboveThreshold(t *testing.T) {
	server := scoreServer("0.82")
	defer server.Close()

	v := New(Config{
		ServerURL:     server.URL,
		ReferencePath: writeReference(t),
		Threshold:     0.35,
	}, zerolog.Nop())

	require.True(t, v.Enabled())
	assert.True(t, v.Verify(context.Background(), []byte("pcm")))
}

func TestVerifier_RejectsBelowThreshold(t *testing.T) {
	server := scoreServer("0.12")
	defer server.Close()

	v := New(Config{
		ServerURL:     server.URL,
		ReferencePath: writeReference(t),
		Threshold:     0.35,
	}, zerolog.Nop())

	assert.False(t, v.Verify(context.Background(), []byte("pcm")))
}

func TestVerifier_FailsOpenWithoutReference(t *testing.T) {
	v := New(Config{
		ServerURL:     "http://127.0.0.1:1",
		ReferencePath: "/nonexistent/reference.wav",
	}, zerolog.Nop())

	assert.False(t, v.Enabled())
	assert.True(t, v.Verify(context.Background(), []byte("pcm")))
}

func TestVerifier_FailsOpenWhenServiceUnreachable(t *testing.T) {
	v := New(Config{
		ServerURL:     "http://127.0.0.1:1",
		ReferencePath: writeReference(t),
	}, zerolog.Nop())

	assert.True(t, v.Enabled())
	assert.True(t, v.Verify(context.Background(), []byte("pcm")))
}

func TestVerifier_FailsOpenOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "embedding model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	v := New(Config{
		ServerURL:     server.URL,
		ReferencePath: writeReference(t),
	}, zerolog.Nop())

	assert.True(t, v.Verify(context.Background(), []byte("pcm")))
}
