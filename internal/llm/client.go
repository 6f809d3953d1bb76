package llm

import (
	"context"
	"errors"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var errNoChoices = errors.New("no choices returned")

// Client is a generative model client for an OpenAI-compatible chat completions API.
type Client struct {
	opts   Options
	client *openai.Client
}

// NewClient creates a new LLM client.
func NewClient(opts Options) *Client {
	return &Client{
		opts:   opts,
		client: newOpenAIClient(opts),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends prompt as a single user message at temperature 0 and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var reply string
	err := call(ctx, c.opts, "chat completion", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.opts.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			// A literal 0 is dropped by omitempty and the server default applies.
			Temperature: math.SmallestNonzeroFloat32,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errNoChoices
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
