package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("hello world"))
	assert.Equal(t, "zh", DetectLanguage("你好"))
	assert.Equal(t, "zh", DetectLanguage("weather in 北京 today"))
	assert.Equal(t, "en", DetectLanguage(""))
}

func TestOpenAIProvider_StreamsResponseBody(t *testing.T) {
	var gotReq speechRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// Two flushed writes so the client sees at least two reads.
		flusher := w.(http.Flusher)
		w.Write(make([]byte, 1000))
		flusher.Flush()
		time.Sleep(20 * time.Millisecond)
		w.Write(make([]byte, 500))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, zerolog.Nop())

	chunks, err := p.SynthesizeStream(context.Background(), "hello")
	require.NoError(t, err)

	total := 0
	count := 0
	for chunk := range chunks {
		total += len(chunk)
		count++
	}
	assert.Equal(t, 1500, total)
	assert.GreaterOrEqual(t, count, 2, "body should arrive in multiple chunks")
	assert.Equal(t, "mp3", gotReq.ResponseFormat)
	assert.Equal(t, "nova", gotReq.Voice, "english text uses the english voice")
}

func TestOpenAIProvider_ChineseTextSwitchesVoice(t *testing.T) {
	var gotReq speechRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, zerolog.Nop())

	chunks, err := p.SynthesizeStream(context.Background(), "你好，今天天气怎么样？")
	require.NoError(t, err)
	for range chunks {
	}
	assert.Equal(t, "shimmer", gotReq.Voice)
}

func TestOpenAIProvider_APIErrorBeforeStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid voice"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, zerolog.Nop())

	_, err := p.SynthesizeStream(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOpenAIProvider_MissingAPIKey(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{}, zerolog.Nop())
	_, err := p.SynthesizeStream(context.Background(), "hello")
	assert.Error(t, err)
}
