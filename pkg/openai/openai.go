package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client *gopenai.Client
	model  string
	debug  bool
}

type Config struct {
	Debug bool
	Token string
	Model string
}

func New(cfg *Config) *Client {
	model := cfg.Model
	if model == "" {
		model = gopenai.GPT3Dot5Turbo
	}
	return &Client{
		client: gopenai.NewClient(cfg.Token),
		model:  model,
		debug:  cfg.Debug,
	}
}

const enhanceSystem = `You write prompts for a text-to-music generation service.
Rewrite the user's idea as a single detailed description of an instrumental track:
mood, genre, tempo, instrumentation. Answer with the description only.`

// Enhance expands a terse idea into a detailed music description suitable
// for a composition request.
func (c *Client) Enhance(ctx context.Context, prompt string) (string, error) {
	c.log("openai: enhancing prompt: %s", prompt)
	resp, err := c.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: enhanceSystem},
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("openai: couldn't create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("openai: empty prompt")
	}
	c.log("openai: enhanced prompt: %s", out)
	return out, nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
