// Package bedrock implements agentloop.Provider on top of the AWS Bedrock
// Converse API via aws-sdk-go-v2/service/bedrockruntime, translating the
// provider-neutral transcript to and from Bedrock's Converse wire types.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/transcript"
)

// RuntimeClient is the subset of *bedrockruntime.Client this adapter needs,
// so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements agentloop.Provider against AWS Bedrock Converse.
type Client struct {
	runtime   RuntimeClient
	modelID   string
	maxTokens int
}

// New builds a Client from an already-constructed Bedrock runtime client.
func New(runtime RuntimeClient, modelID string, maxTokens int) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{runtime: runtime, modelID: modelID, maxTokens: maxTokens}, nil
}

func (c *Client) Name() string { return "bedrock" }

// Render builds the wire-level Converse input for req. Bedrock's Converse
// API has no first-class prompt-cache marker in this adapter's scope, so
// CachePolicy only influences the provider adapters that support it
// (anthropic); Bedrock requests proceed uncached.
func (c *Client) Render(_ context.Context, req agentloop.Request) (any, error) {
	msgs, err := encodeTurns(req.Turns)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errors.New("bedrock: at least one turn is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &c.modelID,
		Messages: msgs,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: int32Ptr(int32(c.maxTokens)),
		},
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	if len(req.Tools) > 0 {
		tc, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = tc
	}
	return input, nil
}

// Submit sends the rendered Converse request and ingests the reply.
func (c *Client) Submit(ctx context.Context, rendered any) (agentloop.Response, error) {
	input, ok := rendered.(*bedrockruntime.ConverseInput)
	if !ok {
		return agentloop.Response{}, fmt.Errorf("bedrock: unexpected rendered request type %T", rendered)
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return agentloop.Response{}, err
	}
	return translateResponse(out)
}

// IsTransient classifies Bedrock/smithy errors carrying a retryable HTTP
// response status.
func (c *Client) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return true
	}
	var throttle *brtypes.ThrottlingException
	if errors.As(err, &throttle) {
		return true
	}
	var unavailable *brtypes.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return true
	}
	var internal *brtypes.InternalServerException
	return errors.As(err, &internal)
}

func encodeTurns(turns []transcript.Turn) ([]brtypes.Message, error) {
	out := make([]brtypes.Message, 0, len(turns))
	for _, t := range turns {
		blocks := make([]brtypes.ContentBlock, 0, len(t.Parts))
		for _, p := range t.Parts {
			switch v := p.(type) {
			case transcript.UserText:
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
			case transcript.ModelText:
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
			case transcript.ToolUse:
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: &v.ID,
					Name:      &v.Name,
					Input:     document.NewLazyDocument(v.Args),
				}})
			case transcript.ToolResult:
				blocks = append(blocks, encodeToolResult(v))
			case transcript.Thinking:
				// Bedrock Converse has no first-class reasoning block in this
				// adapter's scope; reasoning content is dropped on replay here
				// and carried only in the neutral transcript used by other
				// providers.
			default:
				return nil, fmt.Errorf("bedrock: unsupported transcript part %T", p)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch t.Role {
		case transcript.RoleUser:
			role = brtypes.ConversationRoleUser
		case transcript.RoleModel:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("bedrock: unsupported turn role %q", t.Role)
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	return out, nil
}

func encodeToolResult(v transcript.ToolResult) brtypes.ContentBlock {
	status := brtypes.ToolResultStatusSuccess
	if v.IsError {
		status = brtypes.ToolResultStatusError
	}
	var text string
	switch p := v.Payload.(type) {
	case string:
		text = p
	default:
		if data, err := json.Marshal(p); err == nil {
			text = string(data)
		}
	}
	return &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
		ToolUseId: &v.ToolUseID,
		Status:    status,
		Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: text}},
	}}
}

func encodeTools(decls []agentloop.ToolDeclaration) (*brtypes.ToolConfiguration, error) {
	specs := make([]brtypes.Tool, 0, len(decls))
	for _, d := range decls {
		name := d.Name
		desc := d.Description
		specs = append(specs, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        &name,
			Description: &desc,
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(d.ArgSchema)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: specs}, nil
}

func translateResponse(out *bedrockruntime.ConverseOutput) (agentloop.Response, error) {
	if out == nil || out.Output == nil {
		return agentloop.Response{}, errors.New("bedrock: converse output is empty")
	}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return agentloop.Response{}, fmt.Errorf("bedrock: unsupported output variant %T", out.Output)
	}

	var resp agentloop.Response
	var finalText string
	hasToolUse := false

	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Parts = append(resp.Parts, transcript.ModelText{Text: b.Value})
			finalText = b.Value
		case *brtypes.ContentBlockMemberToolUse:
			hasToolUse = true
			var args map[string]any
			if b.Value.Input != nil {
				_ = b.Value.Input.UnmarshalSmithyDocument(&args)
			}
			id := ""
			if b.Value.ToolUseId != nil {
				id = *b.Value.ToolUseId
			}
			name := ""
			if b.Value.Name != nil {
				name = *b.Value.Name
			}
			tu := transcript.ToolUse{ID: id, Name: name, Args: args}
			resp.Parts = append(resp.Parts, tu)
			resp.ToolUses = append(resp.ToolUses, tu)
		}
	}

	if u := out.Usage; u != nil {
		resp.Usage = transcript.TokenUsage{
			InputTokens:      int(deref32(u.InputTokens)),
			OutputTextTokens: int(deref32(u.OutputTokens)),
			TotalTokens:      int(deref32(u.TotalTokens)),
		}
	}

	if !hasToolUse {
		resp.IsFinal = true
		resp.FinalText = finalText
	}
	return resp, nil
}

func int32Ptr(v int32) *int32 { return &v }

func deref32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

var _ agentloop.Provider = (*Client)(nil)
