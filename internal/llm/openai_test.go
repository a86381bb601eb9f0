package llm

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(Message{Role: "system", Content: "Be brief."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(Message{Role: "user", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	param, err := convertMessage(Message{
		Role: "assistant",
		ToolCalls: []ToolCall{
			{ID: "call_1", Name: "web_search", Arguments: `{"query":"weather"}`},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
	if len(param.OfAssistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(param.OfAssistant.ToolCalls))
	}
	tc := param.OfAssistant.ToolCalls[0]
	if tc.ID != "call_1" {
		t.Errorf("expected ID call_1, got %s", tc.ID)
	}
	if tc.Function.Name != "web_search" {
		t.Errorf("expected function name web_search, got %s", tc.Function.Name)
	}
}

func TestConvertMessage_Tool(t *testing.T) {
	param, err := convertMessage(Message{Role: "tool", Content: "sunny", ToolCallID: "call_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfTool == nil {
		t.Fatal("expected OfTool to be set")
	}
	if param.OfTool.ToolCallID != "call_1" {
		t.Errorf("expected ToolCallID call_1, got %s", param.OfTool.ToolCallID)
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(Message{Role: "narrator", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without API key")
	}
}
