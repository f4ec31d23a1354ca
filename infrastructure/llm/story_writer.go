package llm

import (
	"context"

	"github.com/openai/openai-go"
)

// StoryWriter turns a speaker-labeled transcript into narrative story
// text whose first line is the title.
type StoryWriter struct {
	client *Client
	model  string
}

// NewStoryWriter creates the story-writing collaborator.
func NewStoryWriter(client *Client, model string) *StoryWriter {
	return &StoryWriter{client: client, model: model}
}

// WriteStory implements ports.StoryWriter.
func (w *StoryWriter) WriteStory(ctx context.Context, transcript string) (string, error) {
	return w.client.Complete(ctx, w.model, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(storyInstructions),
		openai.UserMessage(transcript),
	})
}

const storyInstructions = `You are a skilled writer transforming conversations into beautiful blog posts.

Given a conversation transcript between a grandchild and grandparent, create:

1. An engaging title (emotional, descriptive) on the first line
2. A narrative blog post (500-800 words) that:
   - Has a clear story arc
   - Preserves the grandparent's voice through direct quotes
   - Includes emotional beats
   - Feels warm and nostalgic
   - Is structured with paragraphs
   - Ends with reflection or wisdom

Style: warm, respectful, celebrating their life story.`
