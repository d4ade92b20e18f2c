package context

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockClient implements llm.Client for testing
type mockClient struct {
	mock.Mock
}

func (m *mockClient) StartSession(ctx context.Context, systemPrompt string) (llm.Session, error) {
	args := m.Called(ctx, systemPrompt)
	session, _ := args.Get(0).(llm.Session)
	return session, args.Error(1)
}

func (m *mockClient) Model() string {
	return "mock-model"
}

// mockSession implements llm.Session for testing
type mockSession struct {
	mock.Mock
}

func (m *mockSession) Send(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func buildConversation(threshold int, system bool, pairs int) *memory.Conversation {
	conv := memory.NewConversation(memory.WithThreshold(threshold))
	if system {
		conv.AddText(types.RoleSystem, "system instructions")
	}
	for i := 0; i < pairs; i++ {
		conv.AddText(types.RoleUser, strings.Repeat("u", 400))
		conv.AddText(types.RoleAssistant, strings.Repeat("a", 400))
	}
	return conv
}

func TestNewTailStrategy(t *testing.T) {
	assert.Equal(t, 1, NewTailStrategy(0).KeepPairs())
	assert.Equal(t, 3, NewTailStrategy(3).KeepPairs())
	assert.Equal(t, "TailSummarization", NewTailStrategy(1).Name())
}

func TestTailStrategy_ShouldRun(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		pairs     int
		want      bool
	}{
		{"over threshold with enough turns", 100, 3, true},
		{"under threshold", 100000, 3, false},
		{"over threshold but only the tail", 10, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := buildConversation(tt.threshold, false, tt.pairs)
			assert.Equal(t, tt.want, NewTailStrategy(1).ShouldRun(conv))
		})
	}
}

func TestTailStrategy_Summarize(t *testing.T) {
	conv := buildConversation(100, true, 4)
	require.Equal(t, 9, conv.Len())
	tail := conv.Turns()[7:]

	session := new(mockSession)
	session.On("Send", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.HasPrefix(text, prompts.SummarizationInstruction) && strings.Contains(text, "USER: uuu")
	})).Return("  Visited three pages and found the price.  ", nil).Once()

	client := new(mockClient)
	client.On("StartSession", mock.Anything, prompts.SummarizationSystemPrompt).Return(session, nil).Once()

	count, err := NewTailStrategy(1).Summarize(context.Background(), conv, client)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	turns := conv.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, types.RoleSystem, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, "[CONVERSATION SUMMARY: Visited three pages and found the price.]", turns[1].Text())
	assert.Equal(t, tail, turns[2:])

	want := 0
	for _, turn := range turns {
		want += conv.EstimateTokens(turn.Text())
	}
	assert.Equal(t, want, conv.EstimatedTokens())

	client.AssertExpectations(t)
	session.AssertExpectations(t)
}

func TestTailStrategy_SummarizeBoundsTurnCount(t *testing.T) {
	for _, keep := range []int{1, 2, 3} {
		for pairs := keep + 1; pairs < keep+5; pairs++ {
			conv := buildConversation(1, false, pairs)

			session := new(mockSession)
			session.On("Send", mock.Anything, mock.Anything).Return("summary", nil)
			client := new(mockClient)
			client.On("StartSession", mock.Anything, mock.Anything).Return(session, nil)

			_, err := NewTailStrategy(keep).Summarize(context.Background(), conv, client)
			require.NoError(t, err)
			assert.LessOrEqual(t, conv.Len(), 2*keep+2, "keep=%d pairs=%d", keep, pairs)
		}
	}
}

func TestTailStrategy_SummarizeNoOpForShortConversation(t *testing.T) {
	conv := memory.NewConversation(memory.WithThreshold(1))
	conv.AddText(types.RoleUser, "task")
	conv.AddText(types.RoleAssistant, "reply")
	conv.AddText(types.RoleUser, "result")

	client := new(mockClient)

	count, err := NewTailStrategy(1).Summarize(context.Background(), conv, client)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 3, conv.Len())
	client.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything)
}

func TestTailStrategy_SummarizeFailureLeavesConversation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(client *mockClient)
	}{
		{
			name: "session start fails",
			setup: func(client *mockClient) {
				client.On("StartSession", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))
			},
		},
		{
			name: "send fails",
			setup: func(client *mockClient) {
				session := new(mockSession)
				session.On("Send", mock.Anything, mock.Anything).Return("", errors.New("timeout"))
				client.On("StartSession", mock.Anything, mock.Anything).Return(session, nil)
			},
		},
		{
			name: "empty summary",
			setup: func(client *mockClient) {
				session := new(mockSession)
				session.On("Send", mock.Anything, mock.Anything).Return("   ", nil)
				client.On("StartSession", mock.Anything, mock.Anything).Return(session, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := buildConversation(1, false, 4)
			before := conv.Turns()

			client := new(mockClient)
			tt.setup(client)

			_, err := NewTailStrategy(1).Summarize(context.Background(), conv, client)
			assert.Error(t, err)
			assert.Equal(t, before, conv.Turns())
		})
	}
}

func TestTailStrategy_NilClient(t *testing.T) {
	conv := buildConversation(1, false, 3)
	_, err := NewTailStrategy(1).Summarize(context.Background(), conv, nil)
	assert.Error(t, err)
}
