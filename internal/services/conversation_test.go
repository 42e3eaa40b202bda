package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/repository"
)

func newConversationService(t *testing.T) (*ConversationService, *fakeDB) {
	t.Helper()
	db := newFakeDB()
	repos := db.repositories()
	return NewConversationService(repos.Conversations, repos.Messages, repos.Memory, testConfig(), quietLogger()), db
}

func seedTurns(t *testing.T, s *ConversationService, id uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		_, err := s.AddMessage(context.Background(), id, role, fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}
}

func TestConversationService_CreateUsesDefaults(t *testing.T) {
	s, db := newConversationService(t)

	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	assert.Equal(t, "Be kind.", conversation.SystemPrompt)
	assert.Equal(t, "voice-default", conversation.VoiceID)
	assert.Equal(t, "stt-a", conversation.STTModelID)
	assert.Equal(t, 1, conversation.MessageCount)

	messages := db.messages[conversation.ID]
	require.Len(t, messages, 1)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "Be kind.", messages[0].Content)
}

func TestConversationService_CreateLeavesNothingOnFailedSystemMessage(t *testing.T) {
	s, db := newConversationService(t)
	db.rejectRole = "system"

	_, err := s.Create(context.Background(), CreateConversationRequest{})
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, db.conversations)
	assert.Empty(t, db.messages)
}

func TestConversationService_CreateRejectsUnknownModel(t *testing.T) {
	s, db := newConversationService(t)

	_, err := s.Create(context.Background(), CreateConversationRequest{STTModelID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Empty(t, db.conversations)
}

func TestConversationService_GetNotFound(t *testing.T) {
	s, _ := newConversationService(t)

	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationService_ListPagination(t *testing.T) {
	s, _ := newConversationService(t)
	for i := 0; i < 23; i++ {
		_, err := s.Create(context.Background(), CreateConversationRequest{})
		require.NoError(t, err)
	}

	page, err := s.List(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 3)
	assert.Equal(t, 23, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.Pages)

	page, err = s.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 1, page.Page)

	page, err = s.List(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.NotNil(t, page.Conversations)
	assert.Empty(t, page.Conversations)
}

func TestConversationService_Update(t *testing.T) {
	s, _ := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	model := "stt-b"
	voice := "voice-2"
	updated, err := s.Update(context.Background(), conversation.ID, repository.ConversationUpdate{
		STTModelID: &model,
		VoiceID:    &voice,
	})
	require.NoError(t, err)
	assert.Equal(t, "stt-b", updated.STTModelID)
	assert.Equal(t, "voice-2", updated.VoiceID)

	bad := "unknown"
	_, err = s.Update(context.Background(), conversation.ID, repository.ConversationUpdate{STTModelID: &bad})
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = s.Update(context.Background(), uuid.New(), repository.ConversationUpdate{VoiceID: &voice})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = s.Update(context.Background(), uuid.New(), repository.ConversationUpdate{})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationService_Delete(t *testing.T) {
	s, db := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), conversation.ID))
	assert.Zero(t, db.messageCount(conversation.ID))
	assert.ErrorIs(t, s.Delete(context.Background(), conversation.ID), ErrConversationNotFound)
}

func TestConversationService_AddMessageRejectsUnknownRole(t *testing.T) {
	s, _ := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	_, err = s.AddMessage(context.Background(), conversation.ID, memory.Role("tool"), "x", nil)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestConversationService_AddMessageKeepsImportance(t *testing.T) {
	s, db := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)

	importance := 0.8
	count, err := s.AddMessage(context.Background(), conversation.ID, memory.RoleUser, "hi", &importance)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored := db.messages[conversation.ID][1]
	assert.True(t, stored.Importance.Valid)
	assert.InDelta(t, 0.8, stored.Importance.Float64, 0.0001)
}

func TestConversationService_ExtractContext(t *testing.T) {
	s, db := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{SystemPrompt: "Talk about space."})
	require.NoError(t, err)
	seedTurns(t, s, conversation.ID, 4)
	db.setSummary(conversation.ID, "They discussed planets.")

	_, history, err := s.ExtractContext(context.Background(), conversation.ID)
	require.NoError(t, err)

	require.Len(t, history, 6)
	assert.Equal(t, memory.Message{Role: memory.RoleSystem, Content: "Talk about space."}, history[0])
	assert.Equal(t, memory.RoleSystem, history[1].Role)
	assert.Equal(t, "Previous conversation summary: They discussed planets.", history[1].Content)
	for i, msg := range history[2:] {
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Content)
		assert.NotEqual(t, memory.RoleSystem, msg.Role)
	}
}

func TestConversationService_ExtractContextWithoutMemory(t *testing.T) {
	s, db := newConversationService(t)
	s.cfg.Memory.Enabled = false
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)
	seedTurns(t, s, conversation.ID, 2)
	db.setSummary(conversation.ID, "ignored")

	_, history, err := s.ExtractContext(context.Background(), conversation.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "Be kind.", history[0].Content)
	assert.Equal(t, "m0", history[1].Content)
}

func TestConversationService_ExtractContextIgnoresSummaryFailure(t *testing.T) {
	s, db := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)
	seedTurns(t, s, conversation.ID, 2)
	db.summaryErr = errors.New("db down")

	_, history, err := s.ExtractContext(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestConversationService_HistoryAndSummary(t *testing.T) {
	s, db := newConversationService(t)
	conversation, err := s.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)
	seedTurns(t, s, conversation.ID, 3)

	_, messages, err := s.History(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)

	summary, err := s.Summary(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, summary)

	db.setSummary(conversation.ID, "short chat")
	summary, err = s.Summary(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "short chat", summary.Summary)

	_, err = s.Summary(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
