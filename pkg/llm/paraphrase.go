// Package llm asks a chat-completion model for paraphrases of robot task
// descriptions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lehungry-robotum/commander/pkg/apierr"
)

const (
	DefaultModel       = openai.GPT3Dot5Turbo
	DefaultTemperature = 0.7
	DefaultVariants    = 3

	systemPrompt = "You are a helpful assistant that paraphrases robot commands."
)

// Options configure a Paraphraser.
type Options struct {
	APIKey      string
	BaseURL     string // empty for the public API
	Model       string
	Temperature float32
	// RequestsPerSecond limits the request rate; 0 means unlimited.
	RequestsPerSecond float64
	Logger            *log.Logger
}

// Paraphraser generates task description variants.
type Paraphraser struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *log.Logger
}

// New returns a Paraphraser. An empty API key is an error.
func New(opts Options) (*Paraphraser, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Paraphraser{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: opts.Temperature,
		limiter:     limiter,
		logger:      opts.Logger,
	}, nil
}

// Prompt is the user message sent for task.
func Prompt(task string, n int) string {
	return fmt.Sprintf("Generate %d distinct, natural language variations for the following robot task: '%s'.\n", n, task) +
		"The variations should convey the exact same meaning but use different words or phrasing suitable for a robot instruction.\n" +
		"Return ONLY the variations as a bulleted list, nothing else."
}

// Paraphrase returns up to n variants of task. Errors are classified with
// apierr kinds; the caller decides whether to carry on without variants.
func (p *Paraphraser) Paraphrase(ctx context.Context, task string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Debug("requesting paraphrases", "model", p.model, "task", task, "n", n)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(task, n)},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apierr.New(apierr.Malformed, "chat completion", errors.New("no choices returned"))
	}

	return ParseVariants(resp.Choices[0].Message.Content, n), nil
}

// ParseVariants splits a bulleted list into at most n entries. Blank lines and
// lines that are empty once bullet characters are stripped are dropped; no
// attempt is made to ensure exactly n remain.
func ParseVariants(content string, n int) []string {
	var variants []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "- "))
		if line == "" {
			continue
		}
		variants = append(variants, line)
		if len(variants) == n {
			break
		}
	}
	return variants
}

func classify(err error) error {
	const op = "chat completion"

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apierr.Error{Kind: apierr.KindForStatus(apiErr.HTTPStatusCode), Op: op, Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apierr.Error{Kind: apierr.KindForStatus(reqErr.HTTPStatusCode), Op: op, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return apierr.FromTransport(op, err)
}
