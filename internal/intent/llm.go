package intent

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// LLMResponse carries the completion text.
type LLMResponse struct {
	Text       string
	StopReason string
}

// LLMClient completes prompts. The Bedrock implementation is below; tests
// substitute fakes.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient calls the Bedrock Converse API.
type BedrockLLMClient struct {
	api bedrockConverseAPI
}

func NewBedrockLLMClient(api bedrockConverseAPI) *BedrockLLMClient {
	if api == nil {
		panic("intent: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("intent: bedrock model id is required")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return LLMResponse{}, errors.New("intent: prompt is required")
	}

	var system []brtypes.SystemContentBlock
	if s := strings.TrimSpace(req.System); s != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: s})
	}

	inference := &brtypes.InferenceConfiguration{
		Temperature: aws.Float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
		System:  system,
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: inference,
	})
	if err != nil {
		return LLMResponse{}, err
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return LLMResponse{}, err
	}
	return LLMResponse{Text: strings.TrimSpace(text), StopReason: string(out.StopReason)}, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("intent: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("intent: bedrock response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("intent: bedrock response contained no text content blocks")
	}
	return builder.String(), nil
}
