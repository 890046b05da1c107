package llmtools

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// ToolSpec is a single callable function exposed to a model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	JSONSchema  json.RawMessage `json:"json_schema"`
}

// ToolCall is a function call requested by a model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// EncodeTools converts specs into the OpenAI tools array.
func EncodeTools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema,
			},
		})
	}
	return out
}

// ParseToolCalls extracts function calls from the first choice of resp.
func ParseToolCalls(resp openai.ChatCompletionResponse) []ToolCall {
	if len(resp.Choices) == 0 {
		return nil
	}
	msg := resp.Choices[0].Message
	out := make([]ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		out = append(out, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

// RunToolCalls invokes each call on r in order and returns one tool message
// per call, ready to append to a conversation. Failures are reported to the
// model as {"error": "..."} rather than aborting the batch.
func RunToolCalls(ctx context.Context, r *Registry, calls []ToolCall) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(calls))
	for _, call := range calls {
		result, err := r.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			log.Warn().Str("tool", call.Name).Err(err).Msg("tool call failed")
			b, _ := json.Marshal(map[string]string{"error": err.Error()})
			result = b
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(result),
			Name:       call.Name,
			ToolCallID: call.ID,
		})
	}
	return out
}
