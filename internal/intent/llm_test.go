package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeConverseAPI struct {
	out   *bedrockruntime.ConverseOutput
	err   error
	input *bedrockruntime.ConverseInput
}

func (f *fakeConverseAPI) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockLLMClient_Complete(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: ` {"intent":"None"} `},
			},
		}},
		StopReason: brtypes.StopReasonEndTurn,
	}}
	client := NewBedrockLLMClient(api)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m", System: "sys", Prompt: "hi", MaxTokens: 10})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != `{"intent":"None"}` {
		t.Fatalf("text = %q", resp.Text)
	}
	if aws.ToString(api.input.ModelId) != "m" || len(api.input.System) != 1 || aws.ToInt32(api.input.InferenceConfig.MaxTokens) != 10 {
		t.Fatalf("unexpected input %+v", api.input)
	}
}

func TestBedrockLLMClient_Errors(t *testing.T) {
	client := NewBedrockLLMClient(&fakeConverseAPI{err: errors.New("denied")})
	if _, err := client.Complete(context.Background(), LLMRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected model id error")
	}
	if _, err := client.Complete(context.Background(), LLMRequest{Model: "m", Prompt: "hi"}); err == nil {
		t.Fatal("expected api error")
	}

	empty := NewBedrockLLMClient(&fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{}},
	}})
	if _, err := empty.Complete(context.Background(), LLMRequest{Model: "m", Prompt: "hi"}); err == nil {
		t.Fatal("expected empty content error")
	}
}
