package ports

import (
	"context"

	"memoir-backend/domain/entities"
)

// Fragment is one piece of a collaborator's streamed reply. A non-nil Err
// terminates the stream.
type Fragment struct {
	Content string
	Err     error
}

// AgentRequest carries one turn to the conversation-agent collaborator.
// History is the prior transcript, oldest first, already trimmed to the
// configured depth; the agent treats SessionID as its conversation-memory
// key.
type AgentRequest struct {
	SessionID   string
	SubjectName string
	Message     string
	History     []*entities.ConversationMessage
}

// ConversationAgent is the external collaborator that produces the
// interviewer's replies as a lazy fragment stream. The returned channel is
// closed when the reply is exhausted; cancellation of ctx stops production.
type ConversationAgent interface {
	StreamReply(ctx context.Context, req AgentRequest) (<-chan Fragment, error)
}

// StoryWriter is the external collaborator that turns a speaker-labeled
// transcript into free-form story text beginning with a title line.
type StoryWriter interface {
	WriteStory(ctx context.Context, transcript string) (string, error)
}
