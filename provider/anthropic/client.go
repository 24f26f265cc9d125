// Package anthropic implements agentloop.Provider on top of the Anthropic
// Claude Messages API via github.com/anthropics/anthropic-sdk-go,
// translating the provider-neutral transcript to and from Anthropic's wire
// types. Each Render encodes the neutral ledger into SDK types and each
// Submit translates the reply back; nothing here stores SDK types outside
// of one render/submit cycle.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/transcript"
)

// interleavedThinkingBeta is the beta header Anthropic requires to keep
// reasoning continuous across tool-call round trips.
const interleavedThinkingBeta = "interleaved-thinking-2025-05-14"

// MessagesClient captures the subset of the SDK used by this adapter, so
// tests can substitute a fake in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements agentloop.Provider against the Anthropic Messages API.
type Client struct {
	msg            MessagesClient
	model          string
	maxTokens      int
	thinkingBudget int64
}

// Options configures a Client.
type Options struct {
	Model          string
	MaxTokens      int
	ThinkingBudget int64
}

// New builds a Client from an already-constructed Anthropic messages
// client and options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("anthropic: max tokens must be positive")
	}
	return &Client{msg: msg, model: opts.Model, maxTokens: opts.MaxTokens, thinkingBudget: opts.ThinkingBudget}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, model string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, Options{Model: model, MaxTokens: maxTokens, ThinkingBudget: 4096})
}

func (c *Client) Name() string { return "anthropic" }

// Render builds the wire-level sdk.MessageNewParams for req. Interleaved
// reasoning is requested whenever a thinking budget is configured; tool
// choice is always "auto" per the spec's interleaved-reasoning contract.
func (c *Client) Render(_ context.Context, req agentloop.Request) (any, error) {
	msgs, err := encodeTurns(req.Turns)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errors.New("anthropic: at least one turn is required")
	}

	if req.CachePolicy != transcript.CacheNone {
		markLatestMessageCacheable(msgs)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
		params.ToolChoice = sdk.ToolChoiceParamOfAuto()
	}
	if c.thinkingBudget > 0 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(c.thinkingBudget)
	}
	return &params, nil
}

// Submit sends the rendered request and ingests the reply into a neutral
// Response.
func (c *Client) Submit(ctx context.Context, rendered any) (agentloop.Response, error) {
	params, ok := rendered.(*sdk.MessageNewParams)
	if !ok {
		return agentloop.Response{}, fmt.Errorf("anthropic: unexpected rendered request type %T", rendered)
	}
	msg, err := c.msg.New(ctx, *params, option.WithHeader("anthropic-beta", interleavedThinkingBeta))
	if err != nil {
		return agentloop.Response{}, err
	}
	return translateResponse(msg)
}

// IsTransient classifies Anthropic SDK errors whose HTTP status indicates a
// retryable server/rate-limit condition.
func (c *Client) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 408, 409, 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

func encodeTurns(turns []transcript.Turn) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(t.Parts))
		for _, p := range t.Parts {
			switch v := p.(type) {
			case transcript.UserText:
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			case transcript.ModelText:
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			case transcript.Thinking:
				if len(v.Redacted) > 0 {
					blocks = append(blocks, sdk.ContentBlockParamUnion{
						OfRedactedThinking: &sdk.RedactedThinkingBlockParam{Data: string(v.Redacted)},
					})
					continue
				}
				blocks = append(blocks, sdk.ContentBlockParamUnion{
					OfThinking: &sdk.ThinkingBlockParam{Thinking: v.Text, Signature: v.Signature},
				})
			case transcript.ToolUse:
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, v.Args, v.Name))
			case transcript.ToolResult:
				blocks = append(blocks, encodeToolResult(v))
			default:
				return nil, fmt.Errorf("anthropic: unsupported transcript part %T", p)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch t.Role {
		case transcript.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case transcript.RoleModel:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported turn role %q", t.Role)
		}
	}
	return out, nil
}

// markLatestMessageCacheable stamps the cache-control boundary on the last
// content block of the last message in msgs, i.e. the latest turn in the
// growing transcript. Anthropic caches everything up to and including a
// marked block, so re-marking the new latest message each cycle (rather
// than the static system prompt, which never changes) is what lets the
// previous cycle's prefix hit cache.
func markLatestMessageCacheable(msgs []sdk.MessageParam) {
	if len(msgs) == 0 {
		return
	}
	last := &msgs[len(msgs)-1]
	if len(last.Content) == 0 {
		return
	}
	block := &last.Content[len(last.Content)-1]
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = sdk.NewCacheControlEphemeralParam()
	case block.OfToolUse != nil:
		block.OfToolUse.CacheControl = sdk.NewCacheControlEphemeralParam()
	case block.OfToolResult != nil:
		block.OfToolResult.CacheControl = sdk.NewCacheControlEphemeralParam()
	case block.OfThinking != nil:
		block.OfThinking.CacheControl = sdk.NewCacheControlEphemeralParam()
	}
}

func encodeToolResult(v transcript.ToolResult) sdk.ContentBlockParamUnion {
	var content string
	switch p := v.Payload.(type) {
	case nil:
		content = ""
	case string:
		content = p
	default:
		if data, err := json.Marshal(p); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError)
}

func encodeTools(decls []agentloop.ToolDeclaration) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		schema := sdk.ToolInputSchemaParam{ExtraFields: d.ArgSchema}
		u := sdk.ToolUnionParamOfTool(schema, d.Name)
		if u.OfTool != nil && d.Description != "" {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func translateResponse(msg *sdk.Message) (agentloop.Response, error) {
	if msg == nil {
		return agentloop.Response{}, errors.New("anthropic: response message is nil")
	}
	var resp agentloop.Response
	var finalText string
	hasToolUse := false

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Parts = append(resp.Parts, transcript.ModelText{Text: block.Text})
			finalText = block.Text
		case "thinking":
			resp.Parts = append(resp.Parts, transcript.Thinking{Text: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			resp.Parts = append(resp.Parts, transcript.Thinking{Signature: block.Signature, Redacted: []byte(block.Data)})
		case "tool_use":
			hasToolUse = true
			var args map[string]any
			if err := json.Unmarshal(block.Input, &args); err != nil {
				args = map[string]any{}
			}
			tu := transcript.ToolUse{ID: block.ID, Name: block.Name, Args: args}
			resp.Parts = append(resp.Parts, tu)
			resp.ToolUses = append(resp.ToolUses, tu)
		}
	}

	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 || u.CacheReadInputTokens != 0 || u.CacheCreationInputTokens != 0 {
		resp.Usage = transcript.TokenUsage{
			InputTokens:      int(u.InputTokens),
			OutputTextTokens: int(u.OutputTokens),
			CacheReadTokens:  int(u.CacheReadInputTokens),
			CacheWriteTokens: int(u.CacheCreationInputTokens),
			TotalTokens:      int(u.InputTokens + u.OutputTokens),
		}
	}

	if !hasToolUse {
		resp.IsFinal = true
		resp.FinalText = finalText
	}
	return resp, nil
}

var _ agentloop.Provider = (*Client)(nil)
