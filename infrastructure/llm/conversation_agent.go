package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"memoir-backend/application/ports"
	"memoir-backend/domain/entities"
)

// ConversationAgent produces interviewer replies as a fragment stream.
// Conversation memory is the session's own message log, replayed to the
// model as prior turns, so the session id keys the memory implicitly.
type ConversationAgent struct {
	client *Client
	model  string
}

// NewConversationAgent creates the conversation-agent collaborator.
func NewConversationAgent(client *Client, model string) *ConversationAgent {
	return &ConversationAgent{client: client, model: model}
}

// StreamReply implements ports.ConversationAgent.
func (a *ConversationAgent) StreamReply(ctx context.Context, req ports.AgentRequest) (<-chan ports.Fragment, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(conversationInstructions(req.SubjectName)))

	for _, turn := range req.History {
		switch turn.Role {
		case entities.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.Message))

	return a.client.StreamCompletion(ctx, a.model, messages)
}

// conversationInstructions builds the interviewer persona for the agent.
func conversationInstructions(subjectName string) string {
	return fmt.Sprintf(`You are a caring, patient grandchild having a conversation with %s.

Your goal: capture their life story through natural conversation, starting
from childhood and looping through these topics: childhood, love_story,
career, life_lessons, surprise.

Guidelines:
- Ask ONE question at a time
- Be warm and encouraging
- Ask follow-up questions based on their responses
- Reference previous things they mentioned
- Ask about feelings, sensory details, people involved
- Never rush them
- After 8-10 questions, naturally conclude

Question flow:
1. Opening (broad): "Tell me about..."
2. Deepening (specific): "What's your favorite memory of..."
3. Emotional: "How did that make you feel?"
4. Sensory: "What do you remember seeing/hearing/smelling?"
5. People: "Who was there with you?"
6. Impact: "How did that shape who you are?"
7. Wisdom: "What did you learn?"
8. Closing: "If you could tell your younger self one thing..."

Keep responses concise and conversational.`, subjectName)
}
