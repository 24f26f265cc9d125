package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/agentloop"
	"github.com/agentcore/agentcore/transcript"
)

type stubRuntimeClient struct {
	lastInput *bedrockruntime.ConverseInput
	out       *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubRuntimeClient) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	return s.out, s.err
}

func TestNewRejectsMissingModelID(t *testing.T) {
	_, err := New(&stubRuntimeClient{}, "", 100)
	assert.Error(t, err)
}

func TestNewDefaultsMaxTokens(t *testing.T) {
	c, err := New(&stubRuntimeClient{}, "anthropic.claude-3", 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, c.maxTokens)
}

func TestRenderBuildsConverseInputWithoutCacheControl(t *testing.T) {
	c, err := New(&stubRuntimeClient{}, "anthropic.claude-3", 256)
	require.NoError(t, err)

	req := agentloop.Request{
		System:      "be helpful",
		Turns:       []transcript.Turn{{Role: transcript.RoleUser, Parts: []transcript.Part{transcript.UserText{Text: "hi"}}}},
		CachePolicy: transcript.Cache1hr,
	}
	rendered, err := c.Render(context.Background(), req)
	require.NoError(t, err)

	input, ok := rendered.(*bedrockruntime.ConverseInput)
	require.True(t, ok)
	require.Len(t, input.Messages, 1)
	require.Len(t, input.System, 1)
}

func TestSubmitTranslatesFinalTextResponse(t *testing.T) {
	stub := &stubRuntimeClient{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello"}},
		}},
		Usage: &brtypes.TokenUsage{InputTokens: int32Ptr(8), OutputTokens: int32Ptr(2), TotalTokens: int32Ptr(10)},
	}}
	c, err := New(stub, "anthropic.claude-3", 256)
	require.NoError(t, err)

	resp, err := c.Submit(context.Background(), &bedrockruntime.ConverseInput{})
	require.NoError(t, err)
	assert.True(t, resp.IsFinal)
	assert.Equal(t, "hello", resp.FinalText)
	assert.Equal(t, 8, resp.Usage.InputTokens)
}

func TestSubmitTranslatesToolUseResponse(t *testing.T) {
	name := "add"
	id := "call-1"
	stub := &stubRuntimeClient{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: &id,
				Name:      &name,
				Input:     document.NewLazyDocument(map[string]any{"a": 2, "b": 3}),
			}}},
		}},
	}}
	c, err := New(stub, "anthropic.claude-3", 256)
	require.NoError(t, err)

	resp, err := c.Submit(context.Background(), &bedrockruntime.ConverseInput{})
	require.NoError(t, err)
	assert.False(t, resp.IsFinal)
	require.Len(t, resp.ToolUses, 1)
	assert.Equal(t, "add", resp.ToolUses[0].Name)
}

func TestIsTransientClassifiesThrottling(t *testing.T) {
	c, err := New(&stubRuntimeClient{}, "m", 1)
	require.NoError(t, err)
	assert.True(t, c.IsTransient(&brtypes.ThrottlingException{}))
	assert.False(t, c.IsTransient(nil))
}
