// Package agent wires the catalog tools into an ADK LLM agent and runs one conversation per process.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	adkagent "google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	adktool "google.golang.org/adk/tool"
	"google.golang.org/genai"

	"catalog_chat/internal/catalog/tool"
	"catalog_chat/platform/apperr"
	"catalog_chat/platform/config"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/tracing"
)

const (
	appName   = "catalog_chat"
	agentName = "CatalogAssistant"
	userID    = "operator"
)

// Response holds every text message the agent produced for one turn, in order.
type Response struct {
	Messages []string
}

// Last returns the final message, or an empty string when there is none.
func (r Response) Last() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1]
}

// Agent answers operator questions through an LLM that can call the registered tools.
type Agent struct {
	runner    *runner.Runner
	sessions  session.Service
	sessionID string
	log       *logger.Logger

	mu      sync.Mutex
	started bool
}

// New builds the agent. Each provider is registered once; its declaration is fixed for the process lifetime.
func New(cfg config.AgentConfig, llm model.LLM, log *logger.Logger, providers ...tool.ToolProvider) (*Agent, error) {
	tools := make([]adktool.Tool, 0, len(providers))
	for _, p := range providers {
		t, err := p.ADKTool()
		if err != nil {
			return nil, fmt.Errorf("register tool %s: %w", p.Declaration().Name, err)
		}
		tools = append(tools, t)
	}

	instruction := strings.TrimSpace(cfg.GetAgentInstructions())
	if instruction == "" {
		instruction = config.DefaultAgentInstructions
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       llm,
		Description: "Answers questions about the product catalog.",
		Instruction: instruction,
		Tools:       tools,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm agent: %w", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          llmAgent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}

	return &Agent{
		runner:    r,
		sessions:  sessions,
		sessionID: uuid.New().String(),
		log:       log,
	}, nil
}

// Respond forwards text to the model and collects its reply. Turns never overlap.
func (a *Agent) Respond(ctx context.Context, text string) (Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "catalog_chat.question")
	defer span.End()

	if err := a.ensureSession(ctx); err != nil {
		tracing.RecordError(span, err)
		return Response{}, err
	}

	msg := &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: text}},
	}

	var resp Response
	for event, err := range a.runner.Run(ctx, userID, a.sessionID, msg, adkagent.RunConfig{StreamingMode: adkagent.StreamingModeNone}) {
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			failure := apperr.AgentFailure("agent run failed", err).WithOp("agent.respond")
			tracing.RecordError(span, failure)
			a.log.WithContext(ctx).Error("agent turn failed", "error", err)
			return Response{}, failure
		}
		if text := eventText(event); text != "" {
			resp.Messages = append(resp.Messages, text)
		}
	}

	if len(resp.Messages) == 0 {
		failure := apperr.AgentFailure("agent returned no answer", nil).WithOp("agent.respond")
		tracing.RecordError(span, failure)
		return Response{}, failure
	}

	a.log.WithContext(ctx).Debug("agent turn completed", "messages", len(resp.Messages))
	return resp, nil
}

func (a *Agent) ensureSession(ctx context.Context) error {
	if a.started {
		return nil
	}
	_, err := a.sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: a.sessionID,
	})
	if err != nil {
		return apperr.AgentFailure("create session", err).WithOp("agent.respond")
	}
	a.started = true
	a.log.WithContext(ctx).Debug("created agent session", "session_id", a.sessionID)
	return nil
}

func eventText(event *session.Event) string {
	if event == nil || event.Content == nil || event.Content.Role != genai.RoleModel {
		return ""
	}
	var b strings.Builder
	for _, part := range event.Content.Parts {
		if part == nil || part.Thought || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
