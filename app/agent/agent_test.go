package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"askpdf/app/retriever"
	"askpdf/loader"
	"askpdf/model"
	"askpdf/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	messages     []types.Message
	messageCount int
	sourcesSaved int
	sources      []types.Source
	sourcesErr   error
	saveErr      error
}

func (f *fakeDB) SaveMessage(_ context.Context, m types.Message) (uuid.UUID, error) {
	if f.saveErr != nil {
		return uuid.Nil, f.saveErr
	}
	m.ID = uuid.New()
	f.messages = append(f.messages, m)
	return m.ID, nil
}

func (f *fakeDB) CountMessages(context.Context, uuid.UUID) (int, error) {
	return f.messageCount, nil
}

func (f *fakeDB) SaveSources(_ context.Context, _, _ uuid.UUID, sources []types.Source) error {
	if f.sourcesErr != nil {
		return f.sourcesErr
	}
	f.sourcesSaved++
	f.sources = sources
	return nil
}

func (f *fakeDB) CreateChat(context.Context, types.Chat) error { return nil }
func (f *fakeDB) GetChat(context.Context, uuid.UUID) (*types.Chat, error) {
	return nil, types.ErrNotFound
}
func (f *fakeDB) DeleteChat(context.Context, uuid.UUID) error { return nil }
func (f *fakeDB) ListMessages(context.Context, uuid.UUID) ([]types.Message, error) {
	return f.messages, nil
}
func (f *fakeDB) DeleteMessages(context.Context, uuid.UUID) error { return nil }
func (f *fakeDB) GetSourcesByMessage(context.Context, uuid.UUID) ([]types.Source, error) {
	return f.sources, nil
}
func (f *fakeDB) DeleteSources(context.Context, uuid.UUID) error { return nil }
func (f *fakeDB) GetUserSettings(context.Context, string) (*types.UserSettings, error) {
	return &types.UserSettings{}, nil
}
func (f *fakeDB) IncrementMessageCount(context.Context, string) error { return nil }
func (f *fakeDB) IncrementChatCount(context.Context, string) error    { return nil }
func (f *fakeDB) GetSubscription(context.Context, string) (*types.Subscription, error) {
	return nil, types.ErrNotFound
}
func (f *fakeDB) GetAppSetting(context.Context, string) (string, error) {
	return "", types.ErrNotFound
}

type fakeStream struct {
	tokens []string
	pos    int
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.tokens) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() string { return s.tokens[s.pos-1] }
func (s *fakeStream) Err() error      { return nil }
func (s *fakeStream) Close() error    { return nil }

type fakeClient struct {
	condensed     string
	completeCalls int
	streamErr     error
	tokens        []string
}

func (c *fakeClient) Complete(_ context.Context, messages []model.ChatMessage) (string, error) {
	c.completeCalls++
	return c.condensed, nil
}

func (c *fakeClient) Stream(context.Context, []model.ChatMessage) (model.TokenStream, error) {
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	return &fakeStream{tokens: c.tokens}, nil
}

func (c *fakeClient) ModelName() string { return "fake-model" }

type fakeResolver struct {
	client *fakeClient
}

func (r *fakeResolver) Resolve(string, int, bool, types.APIKeys) (model.ChatClient, model.ModelOption, error) {
	return r.client, model.ModelOption{Value: "fake-model", Provider: model.ProviderOpenAI}, nil
}

type fakeRetriever struct {
	lastQuestion string
	result       retriever.Result
	err          error
}

func (r *fakeRetriever) Retrieve(_ context.Context, question, _ string) (retriever.Result, error) {
	r.lastQuestion = question
	return r.result, r.err
}

func newTestAgent(db *fakeDB, ret *fakeRetriever, client *fakeClient) *Agent {
	return &Agent{
		store:     db,
		retriever: ret,
		router:    &fakeResolver{client: client},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func baseRequest() AnswerRequest {
	return AnswerRequest{
		Question: "What is the refund policy?",
		FileKey:  "doc-1",
		ChatID:   uuid.New(),
		UserID:   "u1",
	}
}

func TestAnswerWithoutHistorySkipsCondensation(t *testing.T) {
	db := &fakeDB{}
	ret := &fakeRetriever{}
	client := &fakeClient{tokens: []string{"ok"}}
	a := newTestAgent(db, ret, client)

	_, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Zero(t, client.completeCalls, "no history means nothing to condense")
	assert.Equal(t, "What is the refund policy?", ret.lastQuestion)
}

func TestAnswerCondensesWithHistory(t *testing.T) {
	db := &fakeDB{}
	ret := &fakeRetriever{}
	client := &fakeClient{condensed: "What does chapter two say about refunds?", tokens: []string{"ok"}}
	a := newTestAgent(db, ret, client)

	req := baseRequest()
	req.Question = "what about it?"
	req.History = []types.HistoryMessage{
		{Role: types.RoleUser, Content: "Tell me about chapter two"},
		{Role: types.RoleAssistant, Content: "Chapter two covers refunds."},
	}

	_, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, client.completeCalls)
	assert.Equal(t, "What does chapter two say about refunds?", ret.lastQuestion)
}

func TestAnswerPersistsUserTurnBeforeStreaming(t *testing.T) {
	db := &fakeDB{}
	client := &fakeClient{tokens: []string{"ok"}}
	a := newTestAgent(db, &fakeRetriever{}, client)

	req := baseRequest()
	req.Question = "  multi\nline   question  "

	_, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, db.messages, 1)
	assert.Equal(t, types.RoleUser, db.messages[0].Role)
	assert.Equal(t, "multi line   question", db.messages[0].Content)
}

func TestAnswerMessageIndexIsOneBasedAssistantPosition(t *testing.T) {
	db := &fakeDB{messageCount: 4}
	a := newTestAgent(db, &fakeRetriever{}, &fakeClient{tokens: []string{"ok"}})

	answer, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)
	// 4 prior turns + the new user turn makes the assistant turn the 6th.
	assert.Equal(t, 6, answer.MessageIndex)
}

func TestAnswerSourcesCappedBoundedAndPageOrdered(t *testing.T) {
	var matches []types.Match
	for i := 0; i < 7; i++ {
		matches = append(matches, types.Match{
			Text:       strings.Repeat("x", 2000),
			PageNumber: 7 - i,
			Score:      0.9,
		})
	}
	ret := &fakeRetriever{result: retriever.Result{Matches: matches, Context: "ctx"}}
	a := newTestAgent(&fakeDB{}, ret, &fakeClient{tokens: []string{"ok"}})

	answer, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, answer.Sources, MaxSources)
	for i, src := range answer.Sources {
		assert.LessOrEqual(t, len(src.Content), MaxSourceBytes)
		if i > 0 {
			assert.GreaterOrEqual(t, src.PageNumber, answer.Sources[i-1].PageNumber)
		}
	}
}

func TestCompletePersistsAssistantTurnExactlyOnce(t *testing.T) {
	db := &fakeDB{}
	ret := &fakeRetriever{result: retriever.Result{
		Matches: []types.Match{{Text: "refunds in 14 days", PageNumber: 2, Score: 0.9}},
	}}
	a := newTestAgent(db, ret, &fakeClient{tokens: []string{"Refunds ", "take 14 days."}})

	answer, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)

	require.NoError(t, answer.Complete(context.Background(), "Refunds take 14 days."))
	require.NoError(t, answer.Complete(context.Background(), "Refunds take 14 days."))

	var assistant []types.Message
	for _, m := range db.messages {
		if m.Role == types.RoleAssistant {
			assistant = append(assistant, m)
		}
	}
	require.Len(t, assistant, 1, "double completion must not duplicate the assistant turn")
	assert.Equal(t, "Refunds take 14 days.", assistant[0].Content)
	assert.Equal(t, 1, db.sourcesSaved)
}

func TestCompleteSourcePersistenceIsBestEffort(t *testing.T) {
	db := &fakeDB{sourcesErr: errors.New("sources table down")}
	ret := &fakeRetriever{result: retriever.Result{
		Matches: []types.Match{{Text: "refunds", PageNumber: 1, Score: 0.9}},
	}}
	a := newTestAgent(db, ret, &fakeClient{tokens: []string{"ok"}})

	answer, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.NoError(t, answer.Complete(context.Background(), "ok"),
		"losing a citation record must not fail the answer")
}

func TestAnswerRetrievalFailureAborts(t *testing.T) {
	db := &fakeDB{}
	ret := &fakeRetriever{err: fmt.Errorf("%w: index down", types.ErrRetrieval)}
	a := newTestAgent(db, ret, &fakeClient{tokens: []string{"ok"}})

	_, err := a.Answer(context.Background(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRetrieval)

	// The user's own input is kept even though generation never started.
	require.Len(t, db.messages, 1)
	assert.Equal(t, types.RoleUser, db.messages[0].Role)
}

func TestAnswerStreamStartFailureIsGenerationError(t *testing.T) {
	a := newTestAgent(&fakeDB{}, &fakeRetriever{}, &fakeClient{streamErr: errors.New("boom")})

	_, err := a.Answer(context.Background(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGeneration)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "one two three", Sanitize("  one\ntwo\nthree  "))
	assert.Equal(t, "plain", Sanitize("plain"))
}

func TestFormatHistory(t *testing.T) {
	history := []types.HistoryMessage{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
	}
	assert.Equal(t, "Human: hi\nAssistant: hello", formatHistory(history))
	assert.Equal(t, "", formatHistory(nil))
}

type fixedVectorStore struct {
	matches []types.Match
}

func (s *fixedVectorStore) Upsert(context.Context, []types.VectorRecord) error { return nil }

func (s *fixedVectorStore) Query(context.Context, []float32, string, int, int) ([]types.Match, error) {
	return s.matches, nil
}

func (s *fixedVectorStore) DeleteByFileKey(context.Context, string) (int, error) { return 0, nil }

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// Three pages through the real splitter and cleaner, a real retriever over a
// canned index, and a streaming fake model.
func TestAnswerEndToEndScenario(t *testing.T) {
	pages := map[int]string{
		1: strings.Repeat("The refund policy allows returns within 14 days of purchase. ", 25),
		2: strings.Repeat("Shipping costs are covered by the seller for defective items. ", 25),
		3: strings.Repeat("Contact customer support to initiate any refund request. ", 25),
	}

	splitter := loader.NewRecursiveSplitter()
	var matches []types.Match
	score := 0.90
	for page, text := range pages {
		for _, piece := range splitter.Split(text) {
			cleaned := loader.Clean(piece)
			require.GreaterOrEqual(t, len(cleaned), loader.MinChunkLength)
			require.LessOrEqual(t, len(cleaned), loader.DefaultChunkSize)
			matches = append(matches, types.Match{
				Text:       cleaned,
				PageNumber: page,
				Preview:    cleaned[:50],
				Score:      score,
			})
			score -= 0.005
		}
	}
	require.Greater(t, len(matches), 5)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ret := retriever.New(&fixedVectorStore{matches: matches}, fixedEmbedder{}, logger)

	db := &fakeDB{}
	client := &fakeClient{tokens: []string{"Returns are accepted ", "within 14 days."}}
	a := &Agent{
		store:     db,
		retriever: ret,
		router:    &fakeResolver{client: client},
		logger:    logger,
	}

	answer, err := a.Answer(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Zero(t, client.completeCalls, "no history, so the question passes through uncondensed")

	var streamed strings.Builder
	for answer.Stream.Next() {
		streamed.WriteString(answer.Stream.Current())
	}
	require.NoError(t, answer.Stream.Err())
	assert.Equal(t, "Returns are accepted within 14 days.", streamed.String())

	require.NotEmpty(t, answer.Sources)
	assert.LessOrEqual(t, len(answer.Sources), MaxSources)
	for _, src := range answer.Sources {
		assert.LessOrEqual(t, len(src.Content), MaxSourceBytes)
		assert.Contains(t, pages, src.PageNumber)
	}

	require.NoError(t, answer.Complete(context.Background(), streamed.String()))
	require.Len(t, db.messages, 2)
	assert.Equal(t, types.RoleUser, db.messages[0].Role)
	assert.Equal(t, types.RoleAssistant, db.messages[1].Role)
}
