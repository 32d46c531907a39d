package advisor

import (
	"context"
	"fmt"
	"log"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// SignalQuerier provides signal data for the advisor's context.
type SignalQuerier interface {
	GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error)
}

// TraderQuerier provides leaderboard data for the advisor's context.
type TraderQuerier interface {
	GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error)
}

// ConversationStore persists and retrieves conversation messages.
type ConversationStore interface {
	AppendMessage(ctx context.Context, chatID int64, role, content string) error
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]domain.ConversationMessage, error)
}

type AdvisorService struct {
	tracer     trace.Tracer
	llm        LLMClient
	signals    SignalQuerier
	traders    TraderQuerier
	convStore  ConversationStore
	model      string
	maxHistory int
}

func NewAdvisorService(
	tracer trace.Tracer,
	llm LLMClient,
	signals SignalQuerier,
	traders TraderQuerier,
	convStore ConversationStore,
	model string,
	maxHistory int,
) *AdvisorService {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &AdvisorService{
		tracer:     tracer,
		llm:        llm,
		signals:    signals,
		traders:    traders,
		convStore:  convStore,
		model:      model,
		maxHistory: maxHistory,
	}
}

func (s *AdvisorService) Ask(ctx context.Context, chatID int64, userMessage string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", chatID))

	if err := s.convStore.AppendMessage(ctx, chatID, "user", userMessage); err != nil {
		log.Printf("failed to store user message: %v", err)
	}

	signalContext, err := s.gatherContext(ctx, userMessage)
	if err != nil {
		log.Printf("failed to gather signal context: %v", err)
		signalContext = "Signal data temporarily unavailable."
	}

	systemPrompt := BuildSystemPrompt(signalContext)

	history, err := s.convStore.RecentMessages(ctx, chatID, s.maxHistory)
	if err != nil {
		log.Printf("failed to load conversation history: %v", err)
		history = nil
	}

	messages := s.buildMessages(systemPrompt, history)

	reply, err := s.callLLM(ctx, messages)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}

	if err := s.convStore.AppendMessage(ctx, chatID, "assistant", reply); err != nil {
		log.Printf("failed to store assistant reply: %v", err)
	}

	return reply, nil
}

// gatherContext loads all active signals, then narrows to mentioned
// instruments when the message names any of them.
func (s *AdvisorService) gatherContext(ctx context.Context, userMessage string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()

	signals, err := s.signals.GetActiveSignals(ctx, "")
	if err != nil {
		return "", err
	}

	known := make([]string, 0, len(signals))
	for _, sig := range signals {
		known = append(known, sig.Instrument)
	}

	if mentioned := ExtractInstruments(userMessage, known); len(mentioned) > 0 {
		mentionedSet := make(map[string]bool, len(mentioned))
		for _, m := range mentioned {
			mentionedSet[m] = true
		}
		filtered := signals[:0]
		for _, sig := range signals {
			if mentionedSet[sig.Instrument] {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}

	var traders []domain.ScoredTrader
	if s.traders != nil {
		traders, _ = s.traders.GetTopTraders(ctx, domain.TraderTypeLongTerm, 5)
	}

	return FormatSignalContext(signals, traders), nil
}

func (s *AdvisorService) buildMessages(
	systemPrompt string,
	history []domain.ConversationMessage,
) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)

	messages = append(messages, openai.SystemMessage(systemPrompt))

	for _, msg := range history {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	return messages
}

func (s *AdvisorService) callLLM(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	completion, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
