package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

func newTestConversationService(
	spaces *fakeSpaceRepo,
	sessions *fakeSessionRepo,
	messages *fakeMessageRepo,
	agent *fakeAgent,
) *ConversationService {
	return NewConversationService(spaces, sessions, messages, agent, nil, zap.NewNop(), 0, 0)
}

func seedSpace(t *testing.T, spaces *fakeSpaceRepo) *entities.MemorySpace {
	t.Helper()
	space, err := entities.NewMemorySpace("Rosa", "grandmother", "")
	require.NoError(t, err)
	require.NoError(t, spaces.Create(context.Background(), space))
	return space
}

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("timed out draining event stream")
		}
	}
}

func TestProcessTurn_FirstTurnCreatesSession(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{fragments: []string{"Hello ", "Rosa!"}}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		MemorySpaceID: space.ID,
	})
	require.NoError(t, err)

	got := collect(t, events)
	require.GreaterOrEqual(t, len(got), 4)

	meta := got[0]
	assert.Equal(t, EventMetadata, meta.Type)
	assert.NotEmpty(t, meta.SessionID)
	assert.Equal(t, 1, meta.QuestionCount)
	assert.False(t, meta.IsComplete)
	assert.False(t, meta.ShouldAskToContinue)

	assert.Equal(t, EventToken, got[1].Type)
	assert.Equal(t, EventDone, got[len(got)-1].Type)

	// The created session is durable with the defaulted topic.
	session, err := sessions.GetByID(context.Background(), meta.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entities.TopicChildhood, session.Topic)
	assert.Equal(t, 1, session.QuestionCount)

	// The empty first message is replaced by the greeting request, and the
	// assistant reply is persisted after it.
	log, err := messages.ListBySession(context.Background(), meta.SessionID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, entities.RoleUser, log[0].Role)
	assert.Contains(t, log[0].Content, "warm greeting")
	assert.Equal(t, entities.RoleAssistant, log[1].Role)
	assert.Equal(t, "Hello Rosa!", log[1].Content)
	assert.Equal(t, 1, log[0].SequenceNumber)
	assert.Equal(t, 2, log[1].SequenceNumber)
}

func TestProcessTurn_UnknownSpaceRejected(t *testing.T) {
	svc := newTestConversationService(newFakeSpaceRepo(), newFakeSessionRepo(), newFakeMessageRepo(), &fakeAgent{})

	_, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{MemorySpaceID: "missing"})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestProcessTurn_TenthTurnAsksToContinue(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{fragments: []string{"Tell me more."}}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicChildhood)
	require.NoError(t, err)
	session.QuestionCount = 9
	require.NoError(t, sessions.Create(context.Background(), session))

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		SessionID:   session.ID,
		UserMessage: "And then we moved to the coast.",
	})
	require.NoError(t, err)

	got := collect(t, events)
	meta := got[0]
	assert.Equal(t, 10, meta.QuestionCount)
	assert.True(t, meta.ShouldAskToContinue)
	assert.False(t, meta.IsComplete)

	// The continuation prompt is streamed and baked into the stored reply.
	var streamed strings.Builder
	for _, event := range got {
		if event.Type == EventToken {
			streamed.WriteString(event.Content)
		}
	}
	assert.Contains(t, streamed.String(), "Would you like to continue")

	log, err := messages.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.True(t, strings.HasSuffix(log[1].Content, continuationPrompt))
}

func TestProcessTurn_EndConversation(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{fragments: []string{"Thank you, Rosa."}}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicChildhood)
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), session))

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		SessionID:       session.ID,
		UserMessage:     "That's everything I remember.",
		EndConversation: true,
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.True(t, got[0].IsComplete)
	assert.Equal(t, EventDone, got[len(got)-1].Type)
	assert.True(t, got[len(got)-1].IsComplete)

	stored, err := sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SessionCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	// The closing request reaches the agent but not the message log.
	assert.Contains(t, agent.lastRequest().Message, "warm closing message thanking Rosa")
	log, err := messages.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "That's everything I remember.", log[0].Content)
}

func TestProcessTurn_TerminalSessionRejected(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	svc := newTestConversationService(spaces, sessions, newFakeMessageRepo(), &fakeAgent{})
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicChildhood)
	require.NoError(t, err)
	_, err = session.AdvanceTurn(true, time.Now())
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), session))

	_, err = svc.ProcessTurn(context.Background(), ProcessTurnInput{
		SessionID:   session.ID,
		UserMessage: "One more thing.",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestProcessTurn_ConcurrentTurnsEachAdvanceCount(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	svc := newTestConversationService(spaces, sessions, newFakeMessageRepo(), &fakeAgent{fragments: []string{"ok"}})
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicChildhood)
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), session))

	const turns = 8

	// All turns start together; each must load the session under the lock
	// rather than carry a count read before a sibling committed.
	start := make(chan struct{})
	metas := make(chan StreamEvent, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
				SessionID:   session.ID,
				UserMessage: "Tell me more.",
			})
			if err != nil {
				return
			}
			for event := range events {
				if event.Type == EventMetadata {
					metas <- event
				}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(metas)

	counts := make(map[int]bool)
	for meta := range metas {
		counts[meta.QuestionCount] = true
	}
	require.Len(t, counts, turns, "every turn must observe a distinct question count")
	for i := 1; i <= turns; i++ {
		assert.True(t, counts[i], "missing question count %d", i)
	}

	stored, err := sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, turns, stored.QuestionCount)
}

func TestProcessTurn_GrandparentNameOverride(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	agent := &fakeAgent{fragments: []string{"ok"}}
	svc := newTestConversationService(spaces, sessions, newFakeMessageRepo(), agent)
	space := seedSpace(t, spaces)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		MemorySpaceID:   space.ID,
		UserMessage:     "hello",
		GrandparentName: "Abuela",
	})
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, "Abuela", agent.lastRequest().SubjectName)
}

func TestProcessTurn_AgentFailureEmitsErrorEvent(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{startErr: errors.New("model unavailable")}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		MemorySpaceID: space.ID,
		UserMessage:   "hello",
	})
	require.NoError(t, err)

	got := collect(t, events)
	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type)
	assert.NotEmpty(t, last.Message)

	// The turn's session update and user message stay committed.
	meta := got[0]
	session, err := sessions.GetByID(context.Background(), meta.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.QuestionCount)
	log, err := messages.ListBySession(context.Background(), meta.SessionID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, entities.RoleUser, log[0].Role)
}

func TestProcessTurn_PersistFailureEmitsErrorEvent(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	messages.failNext = pkgerrors.NewDatabaseError("append message", errors.New("disk full"))
	svc := newTestConversationService(spaces, sessions, messages, &fakeAgent{fragments: []string{"hi"}})
	space := seedSpace(t, spaces)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		MemorySpaceID: space.ID,
		UserMessage:   "hello",
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, EventMetadata, got[0].Type)
	assert.Equal(t, EventError, got[len(got)-1].Type)
}

func TestProcessTurn_MidStreamFailureEmitsErrorEvent(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{fragments: []string{"partial "}, streamErr: errors.New("stream cut")}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		MemorySpaceID: space.ID,
		UserMessage:   "hello",
	})
	require.NoError(t, err)

	got := collect(t, events)
	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type)

	// No assistant message is stored for a failed reply.
	log, err := messages.ListBySession(context.Background(), got[0].SessionID)
	require.NoError(t, err)
	require.Len(t, log, 1)
}

func TestProcessTurn_AgentSeesHistoryWithoutCurrentMessage(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	agent := &fakeAgent{fragments: []string{"next question"}}
	svc := newTestConversationService(spaces, sessions, messages, agent)
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicChildhood)
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), session))
	_, err = messages.Append(context.Background(), session.ID, entities.RoleUser, "earlier answer", "")
	require.NoError(t, err)
	_, err = messages.Append(context.Background(), session.ID, entities.RoleAssistant, "earlier question", "")
	require.NoError(t, err)

	events, err := svc.ProcessTurn(context.Background(), ProcessTurnInput{
		SessionID:   session.ID,
		UserMessage: "the new answer",
	})
	require.NoError(t, err)
	collect(t, events)

	req := agent.lastRequest()
	require.Len(t, req.History, 2)
	assert.Equal(t, "earlier answer", req.History[0].Content)
	assert.Equal(t, "the new answer", req.Message)
}

func TestHistory(t *testing.T) {
	spaces := newFakeSpaceRepo()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	svc := newTestConversationService(spaces, sessions, messages, &fakeAgent{})
	space := seedSpace(t, spaces)

	session, err := entities.NewConversationSession(space.ID, entities.TopicCareer)
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), session))
	_, err = messages.Append(context.Background(), session.ID, entities.RoleUser, "hi", "")
	require.NoError(t, err)

	got, log, err := svc.History(context.Background(), session.ID)

	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	require.Len(t, log, 1)

	_, _, err = svc.History(context.Background(), "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}
