package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages to send")
	}

	geminiModel := p.client.GenerativeModel(p.model)
	if len(tools) > 0 {
		geminiModel.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(tools)}}
	}

	cs := geminiModel.StartChat()
	for _, m := range messages[:len(messages)-1] {
		cs.History = append(cs.History, geminiContent(m))
	}

	last := geminiContent(messages[len(messages)-1])
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoChoices
	}
	cand := resp.Candidates[0]

	var contentStr string
	var toolCalls []ToolCall

	for _, part := range cand.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentStr += string(v)
		case genai.FunctionCall:
			argsBytes, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("encode arguments of %s: %w", v.Name, err)
			}
			// Gemini matches results to calls by function name.
			toolCalls = append(toolCalls, ToolCall{
				ID:   v.Name,
				Name: v.Name,
				Args: string(argsBytes),
			})
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &Response{
		Content:   contentStr,
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}

func geminiContent(m Message) *genai.Content {
	content := &genai.Content{Role: "user"}
	if m.Role == "assistant" {
		content.Role = "model"
	}

	if m.ToolCallID != "" {
		name := m.ToolName
		if name == "" {
			name = m.ToolCallID
		}
		content.Parts = append(content.Parts, genai.FunctionResponse{
			Name:     name,
			Response: map[string]any{"result": m.Content},
		})
		return content
	}

	if m.Content != "" {
		content.Parts = append(content.Parts, genai.Text(m.Content))
	}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Args), &args)
		content.Parts = append(content.Parts, genai.FunctionCall{
			Name: tc.Name,
			Args: args,
		})
	}
	return content
}

func geminiDeclarations(tools []ToolDef) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := schemaProperties(t.Parameters)
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
			Required:   schemaRequired(t.Parameters),
		}
		for _, name := range sortedNames(props) {
			params.Properties[name] = geminiSchema(props[name])
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return out
}

// geminiSchema maps a JSON schema property. Gemini has no union types, so a
// property accepting several types is offered as a list of strings, which
// the tool layer parses leniently.
func geminiSchema(prop map[string]any) *genai.Schema {
	s := &genai.Schema{Description: schemaDescription(prop)}
	types := schemaTypes(prop)
	if len(types) > 1 {
		s.Type = genai.TypeArray
		s.Items = &genai.Schema{Type: genai.TypeString}
		return s
	}

	s.Type = geminiType(types[0])
	if s.Type == genai.TypeArray {
		item := map[string]any{}
		if items, ok := prop["items"].(map[string]any); ok {
			item = items
		}
		s.Items = geminiSchema(item)
	}
	if enum, ok := prop["enum"].([]string); ok && s.Type == genai.TypeString {
		s.Enum = slices.Clone(enum)
	}
	return s
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeString
}
