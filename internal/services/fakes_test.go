package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/providers"
	"github.com/voxmind/voxmind-backend/internal/repository"
	"github.com/voxmind/voxmind-backend/internal/speech"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		STT: config.STTConfig{
			DefaultModel: "stt-a",
			Models:       []config.STTModel{{ID: "stt-a"}, {ID: "stt-b"}},
		},
		TTS:          config.TTSConfig{DefaultVoiceID: "voice-default"},
		Memory:       config.MemoryConfig{Enabled: true, MaxMessages: 15, SummarizeThreshold: 5},
		Conversation: config.ConversationConfig{DefaultSystemPrompt: "Be kind."},
		Audio: config.AudioConfig{
			AllowedContentTypes: []string{"audio/wav", "audio/mpeg"},
			MaxUploadBytes:      1024,
			TTL:                 time.Hour,
		},
	}
}

// fakeDB backs the in-memory repositories below.
type fakeDB struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]repository.Conversation
	messages      map[uuid.UUID][]repository.Message
	summaries     map[uuid.UUID]repository.MemorySummary
	audio         map[uuid.UUID]repository.AudioFile

	summaryErr error
	// rejectRole fails any write that includes a message with this role.
	rejectRole string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		conversations: make(map[uuid.UUID]repository.Conversation),
		messages:      make(map[uuid.UUID][]repository.Message),
		summaries:     make(map[uuid.UUID]repository.MemorySummary),
		audio:         make(map[uuid.UUID]repository.AudioFile),
	}
}

func (db *fakeDB) repositories() Repositories {
	return Repositories{
		Conversations: fakeConversations{db},
		Messages:      fakeMessages{db},
		Memory:        fakeSummaries{db},
		Audio:         fakeAudio{db},
	}
}

func (db *fakeDB) messageCount(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.messages[id])
}

func (db *fakeDB) setSummary(id uuid.UUID, summary string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.summaries[id] = repository.MemorySummary{ID: uuid.New(), ConversationID: id, Summary: summary}
}

type fakeConversations struct{ db *fakeDB }

func (r fakeConversations) Create(_ context.Context, c *repository.Conversation, initial ...*repository.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkMessages(initial); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	c.MessageCount = len(initial)
	r.db.conversations[c.ID] = *c
	for _, m := range initial {
		m.ConversationID = c.ID
		r.db.appendMessage(m)
	}
	return nil
}

func (r fakeConversations) Get(_ context.Context, id uuid.UUID) (*repository.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[id]
	if !ok {
		return nil, nil
	}
	_, c.MemoryOptimized = r.db.summaries[id]
	return &c, nil
}

func (r fakeConversations) List(_ context.Context, limit, offset int) ([]*repository.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]*repository.Conversation, 0, len(r.db.conversations))
	for _, c := range r.db.conversations {
		c := c
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r fakeConversations) Count(context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.conversations), nil
}

func (r fakeConversations) Update(_ context.Context, id uuid.UUID, u repository.ConversationUpdate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.conversations[id]
	if !ok {
		return false, nil
	}
	if u.SystemPrompt != nil {
		c.SystemPrompt = *u.SystemPrompt
	}
	if u.VoiceID != nil {
		c.VoiceID = *u.VoiceID
	}
	if u.STTModelID != nil {
		c.STTModelID = *u.STTModelID
	}
	r.db.conversations[id] = c
	return true, nil
}

func (r fakeConversations) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.conversations[id]; !ok {
		return false, nil
	}
	delete(r.db.conversations, id)
	delete(r.db.messages, id)
	delete(r.db.summaries, id)
	return true, nil
}

type fakeMessages struct{ db *fakeDB }

func (r fakeMessages) Create(_ context.Context, messages ...*repository.Message) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkMessages(messages); err != nil {
		return 0, err
	}
	id := messages[0].ConversationID
	c, ok := r.db.conversations[id]
	if !ok {
		return 0, errors.New("foreign key violation")
	}
	for _, m := range messages {
		r.db.appendMessage(m)
	}
	c.MessageCount += len(messages)
	r.db.conversations[id] = c
	return c.MessageCount, nil
}

// checkMessages validates a whole write before any of it is applied.
func (db *fakeDB) checkMessages(messages []*repository.Message) error {
	for _, m := range messages {
		if db.rejectRole != "" && m.Role == db.rejectRole {
			return fmt.Errorf("insert %s message: connection reset", m.Role)
		}
	}
	return nil
}

func (db *fakeDB) appendMessage(m *repository.Message) {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	db.messages[m.ConversationID] = append(db.messages[m.ConversationID], *m)
}

func (r fakeMessages) ListByConversation(_ context.Context, id uuid.UUID) ([]repository.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]repository.Message{}, r.db.messages[id]...), nil
}

type fakeSummaries struct{ db *fakeDB }

func (r fakeSummaries) Get(_ context.Context, id uuid.UUID) (*repository.MemorySummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.summaryErr != nil {
		return nil, r.db.summaryErr
	}
	s, ok := r.db.summaries[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r fakeSummaries) Upsert(_ context.Context, id uuid.UUID, summary string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.summaries[id]
	if !ok {
		s = repository.MemorySummary{ID: uuid.New(), ConversationID: id}
	}
	s.Summary = summary
	r.db.summaries[id] = s
	return nil
}

type fakeAudio struct{ db *fakeDB }

func (r fakeAudio) Save(_ context.Context, a *repository.AudioFile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.audio[a.ID] = *a
	return nil
}

func (r fakeAudio) Get(_ context.Context, id uuid.UUID) (*repository.AudioFile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.audio[id]
	if !ok || !a.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &a, nil
}

func (r fakeAudio) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, a := range r.db.audio {
		if !a.ExpiresAt.After(now) {
			delete(r.db.audio, id)
			n++
		}
	}
	return n, nil
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*providers.CompletionResponse)
	return resp, args.Error(1)
}

func reply(content string) *providers.CompletionResponse {
	return &providers.CompletionResponse{
		Content: content,
		Model:   "gpt-test",
		Usage:   providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

type fakeTranscriber struct {
	text  string
	err   error
	model string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, modelID string, _ []byte, _ string) (string, error) {
	f.model = modelID
	return f.text, f.err
}

type fakeSynthesizer struct {
	audio       []byte
	err         error
	voice       string
	voiceCalls  int
	voicesError error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, voiceID string) ([]byte, error) {
	f.voice = voiceID
	return f.audio, f.err
}

func (f *fakeSynthesizer) Voices(context.Context) ([]speech.Voice, error) {
	f.voiceCalls++
	if f.voicesError != nil {
		return nil, f.voicesError
	}
	return []speech.Voice{{VoiceID: "v1", Name: "Rachel", Category: "premium"}}, nil
}
