// Package vision asks an external frame analysis service to describe the
// current camera view over WebSocket.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// analyzeMessage is sent to the vision service.
type analyzeMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// analysisMessage is received with the analysis result.
type analysisMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Provider  string `json:"provider,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Message   string `json:"message,omitempty"` // set on error messages
}

// Config holds vision service settings.
type Config struct {
	ServerURL string
	Timeout   time.Duration
}

// Client performs one-shot frame analysis requests. Each Analyze dials,
// exchanges one request and reply, and closes the connection.
type Client struct {
	config Config
	logger zerolog.Logger
}

// NewClient creates a vision client.
func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		logger: logger.With().Str("component", "vision").Logger(),
	}
}

// Analyze asks the service to describe what the camera currently sees.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	if c.config.ServerURL == "" {
		return "", fmt.Errorf("vision: server URL not configured")
	}

	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("vision: parse url: %w", err)
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/vision/analyze/ws"

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	c.logger.Debug().Str("url", u.String()).Msg("Connecting to vision service")
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("vision: dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON(analyzeMessage{Type: "analyze", Prompt: prompt}); err != nil {
		return "", fmt.Errorf("vision: write request: %w", err)
	}

	// The service may push acks or progress messages before the result.
	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return "", fmt.Errorf("vision: read: %w", err)
		}

		var msg analysisMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse vision message")
			continue
		}

		switch msg.Type {
		case "analysis":
			c.logger.Info().
				Str("provider", msg.Provider).
				Int64("latency_ms", msg.LatencyMs).
				Msg("Received analysis")
			return msg.Content, nil
		case "error":
			return "", fmt.Errorf("vision: server: %s", msg.Message)
		default:
			c.logger.Debug().Str("type", msg.Type).Msg("Skipping message")
		}
	}
}
