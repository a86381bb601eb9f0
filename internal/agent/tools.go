package agent

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/vocalisproject/vocalis/internal/llm"
)

// ToolFunc executes one tool call. It returns plain text for the model;
// failures are reported as text so a broken tool cannot fail the turn.
type ToolFunc func(ctx context.Context, args json.RawMessage) string

// Registry holds the tools exposed to the dialogue model.
type Registry struct {
	defs   []llm.Tool
	funcs  map[string]ToolFunc
	logger zerolog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		funcs:  make(map[string]ToolFunc),
		logger: logger.With().Str("component", "tools").Logger(),
	}
}

// Register adds a tool definition and its implementation.
func (r *Registry) Register(def llm.Tool, fn ToolFunc) {
	r.defs = append(r.defs, def)
	r.funcs[def.Name] = fn
}

// Definitions returns the tool schemas for the completion request.
func (r *Registry) Definitions() []llm.Tool {
	return r.defs
}

// Execute runs the named tool and returns its text result.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) string {
	fn, ok := r.funcs[call.Name]
	if !ok {
		r.logger.Warn().Str("tool", call.Name).Msg("Model requested unknown tool")
		return "Unknown tool: " + call.Name
	}

	r.logger.Info().Str("tool", call.Name).Str("args", call.Arguments).Msg("Executing tool")
	return fn(ctx, json.RawMessage(call.Arguments))
}

// VisionAnalyzer describes the current camera view.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// WebSearcher runs a web search and formats results as text.
type WebSearcher interface {
	Search(ctx context.Context, query, engine string, numResults int) string
}

// RegisterVisionTool exposes camera frame analysis to the model.
func (r *Registry) RegisterVisionTool(client VisionAnalyzer) {
	r.Register(llm.Tool{
		Name:        "vision_analysis",
		Description: "Look through the camera and describe what is currently visible. Use when the user asks about their surroundings or something they are showing.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "What to look for or describe in the camera view",
				},
			},
			"required": []string{"prompt"},
		},
	}, func(ctx context.Context, args json.RawMessage) string {
		var params struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return "Could not read the vision request."
		}
		result, err := client.Analyze(ctx, params.Prompt)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Vision analysis failed")
			return "The camera is not available right now."
		}
		return result
	})
}

// RegisterSearchTool exposes web search to the model.
func (r *Registry) RegisterSearchTool(engine WebSearcher) {
	r.Register(llm.Tool{
		Name:        "web_search",
		Description: "Search the web for current information. Use for questions about recent events, facts you are unsure of, or anything time-sensitive.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"engine": map[string]any{
					"type":        "string",
					"description": "Search engine to use, omit for the default",
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "How many results to return, omit for the default",
				},
			},
			"required": []string{"query"},
		},
	}, func(ctx context.Context, args json.RawMessage) string {
		var params struct {
			Query      string `json:"query"`
			Engine     string `json:"engine"`
			NumResults int    `json:"num_results"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return "Could not read the search request."
		}
		return engine.Search(ctx, params.Query, params.Engine, params.NumResults)
	})
}
