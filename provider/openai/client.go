// Package openai implements agentloop.Provider on top of the OpenAI Chat
// Completions API via github.com/sashabaranov/go-openai, translating the
// provider-neutral transcript to and from OpenAI's wire types.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/transcript"
)

// ChatClient captures the subset of the go-openai client this adapter
// needs, so tests can substitute a fake in place of *openai.Client.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client implements agentloop.Provider against OpenAI Chat Completions.
type Client struct {
	chat      ChatClient
	model     string
	maxTokens int
}

// Options configures a Client.
type Options struct {
	Client    ChatClient
	Model     string
	MaxTokens int
}

// New builds a Client from an already-constructed go-openai client.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai: chat client is required")
	}
	modelID := strings.TrimSpace(opts.Model)
	if modelID == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	return &Client{chat: opts.Client, model: modelID, maxTokens: opts.MaxTokens}, nil
}

// NewFromAPIKey constructs a Client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, model string, maxTokens int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), Model: model, MaxTokens: maxTokens})
}

func (c *Client) Name() string { return "openai" }

// Render builds the wire-level ChatCompletionRequest for req. OpenAI's Chat
// Completions API has no first-class prompt-cache marker this adapter
// exposes; CachePolicy is accepted for interface symmetry with the other
// providers and otherwise unused here.
func (c *Client) Render(_ context.Context, req agentloop.Request) (any, error) {
	messages, err := encodeTurns(req.System, req.Turns)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}

	tools, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}

	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	if c.maxTokens > 0 {
		request.MaxTokens = c.maxTokens
	}
	return &request, nil
}

// Submit sends the rendered request and ingests the reply.
func (c *Client) Submit(ctx context.Context, rendered any) (agentloop.Response, error) {
	request, ok := rendered.(*openai.ChatCompletionRequest)
	if !ok {
		return agentloop.Response{}, fmt.Errorf("openai: unexpected rendered request type %T", rendered)
	}
	resp, err := c.chat.CreateChatCompletion(ctx, *request)
	if err != nil {
		return agentloop.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp)
}

// IsTransient classifies go-openai request errors whose HTTP status
// indicates a retryable server/rate-limit condition.
func (c *Client) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 408, 409, 429, 500, 502, 503, 504:
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case 408, 409, 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

func encodeTurns(system string, turns []transcript.Turn) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == transcript.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		var text strings.Builder
		var toolCalls []openai.ToolCall
		for _, p := range t.Parts {
			switch v := p.(type) {
			case transcript.UserText:
				text.WriteString(v.Text)
			case transcript.ModelText:
				text.WriteString(v.Text)
			case transcript.ToolUse:
				args, err := json.Marshal(v.Args)
				if err != nil {
					return nil, fmt.Errorf("openai: encoding tool_use args: %w", err)
				}
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   v.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      v.Name,
						Arguments: string(args),
					},
				})
			case transcript.ToolResult:
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    payloadToString(v.Payload),
					ToolCallID: v.ToolUseID,
				})
			case transcript.Thinking:
				// OpenAI's Chat Completions surface has no first-class
				// reasoning message this adapter replays; reasoning content
				// is carried only in the neutral transcript.
			default:
				return nil, fmt.Errorf("openai: unsupported transcript part %T", p)
			}
		}
		if text.Len() == 0 && len(toolCalls) == 0 {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: text.String(), ToolCalls: toolCalls})
	}
	return out, nil
}

func payloadToString(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return p
	default:
		if data, err := json.Marshal(p); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", payload)
	}
}

func encodeTools(decls []agentloop.ToolDeclaration) ([]openai.Tool, error) {
	if len(decls) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, 0, len(decls))
	for _, d := range decls {
		params, err := json.Marshal(d.ArgSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal tool %s schema: %w", d.Name, err)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return out, nil
}

func translateResponse(resp openai.ChatCompletionResponse) (agentloop.Response, error) {
	if len(resp.Choices) == 0 {
		return agentloop.Response{}, errors.New("openai: completion has no choices")
	}
	choice := resp.Choices[0]
	var out agentloop.Response

	if text := choice.Message.Content; strings.TrimSpace(text) != "" {
		out.Parts = append(out.Parts, transcript.ModelText{Text: text})
	}
	for _, call := range choice.Message.ToolCalls {
		args := parseToolArguments(call.Function.Arguments)
		tu := transcript.ToolUse{ID: call.ID, Name: call.Function.Name, Args: args}
		out.Parts = append(out.Parts, tu)
		out.ToolUses = append(out.ToolUses, tu)
	}

	out.Usage = transcript.TokenUsage{
		InputTokens:      resp.Usage.PromptTokens,
		OutputTextTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if len(choice.Message.ToolCalls) == 0 {
		out.IsFinal = true
		out.FinalText = choice.Message.Content
	}
	return out, nil
}

func parseToolArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}

var _ agentloop.Provider = (*Client)(nil)
