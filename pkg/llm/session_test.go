package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/pilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSession_SendRecordsHistory(t *testing.T) {
	var seen [][]types.Turn
	session := NewChatSession("system", func(ctx context.Context, system string, history []types.Turn) (string, error) {
		assert.Equal(t, "system", system)
		seen = append(seen, history)
		return "reply", nil
	})

	reply, err := session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply", reply)

	_, err = session.Send(context.Background(), "again")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 1)
	assert.Len(t, seen[1], 3)

	history := session.History()
	require.Len(t, history, 4)
	assert.Equal(t, types.RoleUser, history[2].Role)
	assert.Equal(t, "again", history[2].Text())
	assert.Equal(t, types.RoleAssistant, history[3].Role)
}

func TestChatSession_FailedSendLeavesHistory(t *testing.T) {
	session := NewChatSession("", func(context.Context, string, []types.Turn) (string, error) {
		return "", errors.New("unavailable")
	})

	_, err := session.Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Empty(t, session.History())
}

func TestChatSession_SyncHistory(t *testing.T) {
	var last []types.Turn
	session := NewChatSession("sys", func(_ context.Context, _ string, history []types.Turn) (string, error) {
		last = history
		return "ok", nil
	})

	session.SyncHistory([]types.Turn{
		types.NewTextTurn(types.RoleSystem, "ignored"),
		types.NewTextTurn(types.RoleUser, "task"),
		types.NewTextTurn(types.RoleAssistant, "[CONVERSATION SUMMARY: did things]"),
		types.NewTurn(types.RoleUser, types.ImageBlock("png", "eHg=")),
	})

	_, err := session.Send(context.Background(), "Continue with the task. What's the next step?")
	require.NoError(t, err)

	require.Len(t, last, 3, "tool result and continuation prompt merge into one user turn")
	assert.Equal(t, types.RoleUser, last[2].Role)
	assert.Len(t, last[2].Content, 2)
}

func TestMergeTurns(t *testing.T) {
	turns := []types.Turn{
		types.NewTextTurn(types.RoleSystem, "s"),
		types.NewTextTurn(types.RoleUser, "a"),
		types.NewTextTurn(types.RoleUser, "b"),
		types.NewTextTurn(types.RoleAssistant, "c"),
		types.NewTextTurn(types.RoleUser, "d"),
	}

	merged := MergeTurns(turns)

	require.Len(t, merged, 3)
	assert.Equal(t, "a\nb", merged[0].Text())
	assert.Equal(t, "c", merged[1].Text())
	assert.Equal(t, "d", merged[2].Text())
	assert.Equal(t, "a", turns[1].Text(), "input must not be modified")
}

type clonerClient struct{ model string }

func (c clonerClient) StartSession(context.Context, string) (Session, error) { return nil, nil }
func (c clonerClient) Model() string                                         { return c.model }
func (c clonerClient) CloneWithModel(model string) Client                    { return clonerClient{model: model} }

type plainClient struct{}

func (plainClient) StartSession(context.Context, string) (Session, error) { return nil, nil }
func (plainClient) Model() string                                         { return "plain" }

func TestForModel(t *testing.T) {
	assert.Equal(t, "cheap", ForModel(clonerClient{model: "main"}, "cheap").Model())
	assert.Equal(t, "main", ForModel(clonerClient{model: "main"}, "").Model())
	assert.Equal(t, "plain", ForModel(plainClient{}, "cheap").Model())
}
