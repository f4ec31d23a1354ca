// Package llm implements the external language-model collaborators (the
// conversation agent and the story writer) against any OpenAI-compatible
// chat-completions API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"memoir-backend/application/ports"
)

// Client is a thin streaming chat-completions client. Raw SSE handling is
// used instead of a generated SDK stream for compatibility with
// OpenAI-compatible endpoints that emit comments or format variations.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates an LLM client for the given endpoint. The circuit
// breaker trips after repeated consecutive failures so a degraded
// collaborator fails fast instead of tying up request handlers.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		breaker:    breaker,
		logger:     logger,
	}
}

// StreamCompletion sends messages to the chat-completions API and streams
// back content fragments. The returned channel is closed when the response
// is exhausted or an error occurs; cancellation of ctx stops the relay.
func (c *Client) StreamCompletion(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (<-chan ports.Fragment, error) {
	resp, err := c.sendStreamRequest(ctx, model, messages)
	if err != nil {
		return nil, err
	}

	fragments := make(chan ports.Fragment, 10)
	go c.processStreamResponse(ctx, resp, fragments)
	return fragments, nil
}

// Complete sends messages and returns the accumulated response text.
func (c *Client) Complete(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	fragments, err := c.StreamCompletion(ctx, model, messages)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for fragment := range fragments {
		if fragment.Err != nil {
			return "", fragment.Err
		}
		content.WriteString(fragment.Content)
	}
	return content.String(), nil
}

// sendStreamRequest creates and sends the HTTP request for streaming.
func (c *Client) sendStreamRequest(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("API request failed with status %d", resp.StatusCode)
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*http.Response), nil
}

// processStreamResponse relays the SSE stream into the fragment channel.
func (c *Client) processStreamResponse(ctx context.Context, resp *http.Response, fragments chan<- ports.Fragment) {
	defer close(fragments)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		content, ok := parseDeltaContent(data)
		if !ok || content == "" {
			continue
		}

		select {
		case fragments <- ports.Fragment{Content: content}:
		case <-ctx.Done():
			// The consumer has stopped ranging; a blocking send here
			// would strand this goroutine and leak the response body.
			select {
			case fragments <- ports.Fragment{Err: ctx.Err()}:
			default:
			}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case fragments <- ports.Fragment{Err: fmt.Errorf("stream read error: %w", err)}:
		case <-ctx.Done():
		}
	}
}

// parseDeltaContent extracts the delta content from one SSE chunk.
// Malformed chunks are skipped silently.
func parseDeltaContent(data string) (string, bool) {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}

	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}
