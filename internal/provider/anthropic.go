package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

type AnthropicProvider struct {
	apiKey string
	model  string
	client anthropic.Client
}

func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if model == "" {
		model = "claude-haiku-4-5"
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// SetBaseURL points the client at another endpoint, such as a proxy.
func (p *AnthropicProvider) SetBaseURL(url string) {
	p.client = anthropic.NewClient(option.WithAPIKey(p.apiKey), option.WithBaseURL(url))
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, defs []ToolDef) (*Response, error) {
	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  anthropicMessages(rest),
		Tools:     anthropicTools(defs),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &Response{
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += b.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: b.JSON.Input.Raw(),
			})
		}
	}
	return out, nil
}

// anthropicMessages converts the conversation. Consecutive messages of the
// same role are merged, so the results of several tool calls made in one
// turn reach the model as a single user message.
func anthropicMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	add := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, m := range messages {
		switch {
		case m.Role == "tool" || m.ToolCallID != "":
			add(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case m.Role == "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := tc.Args
				if args == "" {
					args = "{}"
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(args), tc.Name))
			}
			add(anthropic.MessageParamRoleAssistant, blocks...)
		case m.Content != "":
			add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(m.Content))
		}
	}
	return out
}

func anthropicTools(defs []ToolDef) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, d := range defs {
		tool := anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: d.Parameters["properties"],
				Required:   schemaRequired(d.Parameters),
			},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}

// splitSystem moves leading system messages into the request's system
// prompt, which the messages API keeps separate from the conversation.
func splitSystem(messages []Message) (string, []Message) {
	var parts []string
	i := 0
	for ; i < len(messages) && messages[i].Role == "system"; i++ {
		parts = append(parts, messages[i].Content)
	}
	return strings.Join(parts, "\n\n"), messages[i:]
}
