package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"askpdf/app/retriever"
	"askpdf/model"
	"askpdf/store"
	"askpdf/types"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// MaxSources caps the citations attached to one assistant turn.
	MaxSources = 5

	// MaxSourceBytes bounds each citation excerpt.
	MaxSourceBytes = 1000
)

// ContextRetriever assembles grounded context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question, fileKey string) (retriever.Result, error)
}

// ModelResolver picks and builds the chat client for a request.
type ModelResolver interface {
	Resolve(selected string, messageCount int, isAdmin bool, keys types.APIKeys) (model.ChatClient, model.ModelOption, error)
}

// Agent orchestrates one answer: sanitize, condense, retrieve, stream the
// grounded generation, and persist the conversation turns.
type Agent struct {
	store     store.DBStorer
	retriever ContextRetriever
	router    ModelResolver
	logger    *slog.Logger
	encoder   *tiktoken.Tiktoken
}

func New(db store.DBStorer, ret ContextRetriever, router ModelResolver, logger *slog.Logger) *Agent {
	encoder, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		logger.Warn("token encoder unavailable, prompt sizes will not be logged", "error", err)
	}
	return &Agent{
		store:     db,
		retriever: ret,
		router:    router,
		logger:    logger,
		encoder:   encoder,
	}
}

// AnswerRequest is one question against one document in one chat.
type AnswerRequest struct {
	Question      string
	History       []types.HistoryMessage
	FileKey       string
	ChatID        uuid.UUID
	UserID        string
	IsAdmin       bool
	SelectedModel string
	Keys          types.APIKeys
}

// Answer is a streaming response. Sources and MessageIndex are available
// immediately, before the stream is drained, so the caller can ship
// citations out-of-band while tokens are still arriving. Complete must be
// called exactly after the stream is fully drained; it is safe to call more
// than once.
type Answer struct {
	Stream       model.TokenStream
	Sources      []types.Source
	MessageIndex int
	Model        string

	agent  *Agent
	chatID uuid.UUID
	once   sync.Once
}

// Complete persists the assistant turn. Citation persistence is best-effort;
// a failed source write is logged and does not fail the answer.
func (a *Answer) Complete(ctx context.Context, fullText string) error {
	var err error
	a.once.Do(func() {
		var messageID uuid.UUID
		messageID, err = a.agent.store.SaveMessage(ctx, types.Message{
			ChatID:    a.chatID,
			Role:      types.RoleAssistant,
			Content:   fullText,
			CreatedAt: time.Now(),
		})
		if err != nil {
			err = fmt.Errorf("save assistant turn: %w", err)
			return
		}
		if len(a.Sources) == 0 {
			return
		}
		if srcErr := a.agent.store.SaveSources(ctx, messageID, a.chatID, a.Sources); srcErr != nil {
			a.agent.logger.Warn("failed to persist sources", "chatID", a.chatID, "error", srcErr)
		}
	})
	return err
}

func (a *Agent) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	question := Sanitize(req.Question)

	messageCount, err := a.store.CountMessages(ctx, req.ChatID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	client, opt, err := a.router.Resolve(req.SelectedModel, messageCount, req.IsAdmin, req.Keys)
	if err != nil {
		return nil, err
	}

	history := formatHistory(req.History)

	condensed, err := a.condense(ctx, client, question, history)
	if err != nil {
		return nil, err
	}

	// The user's turn commits before generation starts. If generation fails
	// afterwards the question is kept; only the assistant turn is withheld.
	if _, err := a.store.SaveMessage(ctx, types.Message{
		ChatID:    req.ChatID,
		Role:      types.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("save user turn: %w", err)
	}

	result, err := a.retriever.Retrieve(ctx, condensed, req.FileKey)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(answerTemplate, result.Context, history, condensed)
	a.logPromptSize(prompt, opt.Value)

	stream, err := client.Stream(ctx, []model.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("%w: start stream with %s: %v", types.ErrGeneration, opt.Value, err)
	}

	return &Answer{
		Stream:       stream,
		Sources:      buildSources(result.Matches),
		MessageIndex: messageCount + 2,
		Model:        opt.Value,
		agent:        a,
		chatID:       req.ChatID,
	}, nil
}

// condense rewrites a follow-up into a standalone question. With no history
// there is nothing to resolve, so the sanitized question passes through
// without a model call.
func (a *Agent) condense(ctx context.Context, client model.ChatClient, question, history string) (string, error) {
	if history == "" {
		return question, nil
	}
	prompt := fmt.Sprintf(questionTemplate, history, question)
	condensed, err := client.Complete(ctx, []model.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("%w: condense question: %v", types.ErrGeneration, err)
	}
	condensed = strings.TrimSpace(condensed)
	if condensed == "" {
		return question, nil
	}
	return condensed, nil
}

func (a *Agent) logPromptSize(prompt, modelID string) {
	if a.encoder == nil {
		return
	}
	tokens := a.encoder.Encode(prompt, nil, nil)
	a.logger.Debug("answer prompt assembled", "model", modelID, "promptTokens", len(tokens))
}

// Sanitize trims the question and collapses newlines to spaces.
func Sanitize(question string) string {
	question = strings.ReplaceAll(question, "\n", " ")
	return strings.TrimSpace(question)
}

func formatHistory(history []types.HistoryMessage) string {
	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Human"
		if m.Role == types.RoleAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Content))
	}
	return strings.Join(lines, "\n")
}

// buildSources turns matches into citations: capped count, bounded excerpt
// size, ordered by page number.
func buildSources(matches []types.Match) []types.Source {
	if len(matches) > MaxSources {
		matches = matches[:MaxSources]
	}
	sources := make([]types.Source, 0, len(matches))
	for _, m := range matches {
		content := m.Text
		if len(content) > MaxSourceBytes {
			content = content[:MaxSourceBytes]
		}
		sources = append(sources, types.Source{
			PageNumber: m.PageNumber,
			Content:    content,
		})
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].PageNumber < sources[j].PageNumber
	})
	return sources
}
