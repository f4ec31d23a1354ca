package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "memoir-backend/pkg/errors"
)

func TestNewConversationSession_Defaults(t *testing.T) {
	session, err := NewConversationSession("space-1", "")

	require.NoError(t, err)
	assert.Equal(t, TopicChildhood, session.Topic)
	assert.Equal(t, SessionInProgress, session.Status)
	assert.Equal(t, "text", session.InputMode)
	assert.Equal(t, 0, session.QuestionCount)
	assert.Nil(t, session.CompletedAt)
	assert.NotEmpty(t, session.ID)
}

func TestNewConversationSession_UnknownTopic(t *testing.T) {
	_, err := NewConversationSession("space-1", Topic("gardening"))

	require.Error(t, err)
	var appErr *pkgerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)

	// The rejection names the permitted topics.
	for _, topic := range Topics() {
		assert.Contains(t, appErr.Message, string(topic))
	}
}

func TestNewConversationSession_EmptySpaceID(t *testing.T) {
	_, err := NewConversationSession("", TopicCareer)
	assert.Error(t, err)
}

func TestAdvanceTurn_IncrementsCount(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicChildhood)
	require.NoError(t, err)

	outcome, err := session.AdvanceTurn(false, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.QuestionCount)
	assert.Equal(t, 1, session.QuestionCount)
	assert.False(t, outcome.IsComplete)
	assert.False(t, outcome.ShouldAskToContinue)
	assert.Equal(t, SessionInProgress, session.Status)
}

func TestAdvanceTurn_ContinuationCheckEveryTenth(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicChildhood)
	require.NoError(t, err)

	for i := 1; i <= 25; i++ {
		outcome, err := session.AdvanceTurn(false, time.Now())
		require.NoError(t, err)

		expected := i%10 == 0
		assert.Equal(t, expected, outcome.ShouldAskToContinue, "turn %d", i)
	}
}

func TestAdvanceTurn_EndCompletesSession(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicLoveStory)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	outcome, err := session.AdvanceTurn(true, now)

	require.NoError(t, err)
	assert.True(t, outcome.IsComplete)
	assert.Equal(t, SessionCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, now, *session.CompletedAt)
	assert.True(t, session.IsComplete())
}

func TestAdvanceTurn_EndSuppressesContinuationCheck(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicChildhood)
	require.NoError(t, err)
	session.QuestionCount = 9

	outcome, err := session.AdvanceTurn(true, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 10, outcome.QuestionCount)
	assert.True(t, outcome.IsComplete)
	assert.False(t, outcome.ShouldAskToContinue)
}

func TestAdvanceTurn_TerminalSessionRejected(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicChildhood)
	require.NoError(t, err)

	_, err = session.AdvanceTurn(true, time.Now())
	require.NoError(t, err)

	countBefore := session.QuestionCount
	_, err = session.AdvanceTurn(false, time.Now())

	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
	assert.Equal(t, countBefore, session.QuestionCount)
}

func TestAbandon(t *testing.T) {
	session, err := NewConversationSession("space-1", TopicChildhood)
	require.NoError(t, err)

	require.NoError(t, session.Abandon())
	assert.Equal(t, SessionAbandoned, session.Status)
	assert.False(t, session.IsComplete())

	assert.Error(t, session.Abandon())
}
