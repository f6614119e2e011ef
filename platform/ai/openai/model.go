// Package openai adapts OpenAI-compatible chat-completions endpoints (OpenAI and Azure OpenAI)
// to the ADK model.LLM interface.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"catalog_chat/platform/config"
	"catalog_chat/platform/tracing"
)

const (
	// ProviderAzure targets an Azure OpenAI deployment.
	ProviderAzure = "azure"
	// ProviderOpenAI targets api.openai.com or any compatible base URL.
	ProviderOpenAI = "openai"

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultAPIVersion    = "2024-10-21"
	maxErrorBody         = 2048
)

// Config for the chat-completions endpoint.
type Config struct {
	Provider string
	// Endpoint is the Azure resource URL or the OpenAI base URL.
	Endpoint string
	APIKey   string
	// Model is the OpenAI model name or the Azure deployment name.
	Model      string
	APIVersion string
	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// ConfigFrom maps application settings onto the adapter config.
func ConfigFrom(cfg config.LLMConfig) Config {
	return Config{
		Provider:          cfg.GetLLMProvider(),
		Endpoint:          cfg.GetLLMEndpoint(),
		APIKey:            cfg.GetLLMAPIKey(),
		Model:             cfg.GetLLMModel(),
		APIVersion:        cfg.GetLLMAPIVersion(),
		RequestsPerSecond: cfg.GetLLMRequestsPerSecond(),
	}
}

// ChatModel adapts a chat-completions endpoint to the ADK model.LLM interface.
type ChatModel struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

var _ model.LLM = (*ChatModel)(nil)

// NewModel returns a chat model. An Azure provider needs an endpoint.
func NewModel(cfg Config) (*ChatModel, error) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	switch cfg.Provider {
	case ProviderAzure:
		if cfg.Endpoint == "" {
			return nil, errors.New("azure provider requires an endpoint")
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = defaultAPIVersion
		}
	case ProviderOpenAI:
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultOpenAIBaseURL
		}
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = tracing.HTTPClient(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &ChatModel{config: cfg, client: client, limiter: limiter}, nil
}

func (m *ChatModel) Name() string {
	return m.config.Model
}

// GenerateContent sends the conversation in one non-streaming request.
func (m *ChatModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function toolCallDetail `json:"function"`
}

type toolCallDetail struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolDefFunc `json:"function"`
}

type toolDefFunc struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

func (m *ChatModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, errors.New("nil model request")
	}

	payload := chatRequest{
		Messages: m.convertMessages(req),
		Tools:    convertTools(req),
	}
	// Azure selects the model through the deployment in the URL.
	if m.config.Provider == ProviderOpenAI {
		payload.Model = m.config.Model
	}
	if req.Config != nil && req.Config.Temperature != nil {
		payload.Temperature = req.Config.Temperature
	}
	if len(payload.Tools) > 0 {
		payload.ToolChoice = "auto"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.config.Provider == ProviderAzure {
		httpReq.Header.Set("api-key", m.config.APIKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("chat api error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("chat api error: empty choices")
	}

	choice := result.Choices[0].Message
	parts := make([]*genai.Part, 0, 1+len(choice.ToolCalls))
	if strings.TrimSpace(choice.Content) != "" {
		parts = append(parts, genai.NewPartFromText(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
	}, nil
}

// StatusError is returned for a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Body)
}

func (m *ChatModel) completionsURL() string {
	if m.config.Provider == ProviderAzure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			m.config.Endpoint, url.PathEscape(m.config.Model), url.QueryEscape(m.config.APIVersion))
	}
	return m.config.Endpoint + "/chat/completions"
}

func (m *ChatModel) convertMessages(req *model.LLMRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Contents)+1)
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := contentText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, chatMessage{Role: "system", Content: text})
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}

		text, calls, toolMessages := extractContentMessages(content)
		messages = append(messages, toolMessages...)
		if text != "" || len(calls) > 0 {
			messages = append(messages, chatMessage{
				Role:      roleForContent(content.Role),
				Content:   text,
				ToolCalls: calls,
			})
		}
	}
	return messages
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return "assistant"
	}
	return "user"
}

func contentText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil {
			appendText(&b, part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func extractContentMessages(content *genai.Content) (string, []toolCall, []chatMessage) {
	var calls []toolCall
	var toolMessages []chatMessage
	var text strings.Builder

	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if msg, ok := buildToolResponseMessage(part); ok {
			toolMessages = append(toolMessages, msg)
			continue
		}
		if call, ok := buildToolCall(part); ok {
			calls = append(calls, call)
			continue
		}
		appendText(&text, part.Text)
	}

	return strings.TrimSpace(text.String()), calls, toolMessages
}

func buildToolResponseMessage(part *genai.Part) (chatMessage, bool) {
	if part.FunctionResponse == nil {
		return chatMessage{}, false
	}
	payload, _ := json.Marshal(part.FunctionResponse.Response)
	return chatMessage{
		Role:       "tool",
		ToolCallID: part.FunctionResponse.ID,
		Content:    string(payload),
		Name:       part.FunctionResponse.Name,
	}, true
}

func buildToolCall(part *genai.Part) (toolCall, bool) {
	if part.FunctionCall == nil {
		return toolCall{}, false
	}
	args, _ := json.Marshal(part.FunctionCall.Args)
	return toolCall{
		ID:   part.FunctionCall.ID,
		Type: "function",
		Function: toolCallDetail{
			Name:      part.FunctionCall.Name,
			Arguments: string(args),
		},
	}, true
}

func appendText(builder *strings.Builder, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if builder.Len() > 0 {
		builder.WriteString("\n")
	}
	builder.WriteString(text)
}

func convertTools(req *model.LLMRequest) []toolDef {
	if req.Config == nil || len(req.Config.Tools) == 0 {
		return nil
	}

	var tools []toolDef
	for _, gt := range req.Config.Tools {
		if gt == nil || gt.FunctionDeclarations == nil {
			continue
		}
		for _, decl := range gt.FunctionDeclarations {
			if decl == nil || decl.Name == "" {
				continue
			}
			var params any
			switch {
			case decl.ParametersJsonSchema != nil:
				params = decl.ParametersJsonSchema
			case decl.Parameters != nil:
				params = decl.Parameters
			}
			tools = append(tools, toolDef{
				Type: "function",
				Function: toolDefFunc{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}

	return tools
}
