// Package llm generates assistant replies for transcribed utterances.
package llm

import "context"

// Message is one entry of the conversation history.
type Message struct {
	Role       string // "system", "user", "assistant" or "tool"
	Content    string
	ToolCallID string // set on "tool" messages
	ToolCalls  []ToolCall
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments
}

// Tool describes a callable tool exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Reply is the model's answer for one request.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Generator produces a reply for the given conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (*Reply, error)
}
