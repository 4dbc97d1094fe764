package aifallback

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/pkg/anthropic"
	"github.com/sells-group/jobsearch-cli/pkg/perplexity"
)

// Request is one prompt to a model. Kind and Domains are hints for
// providers that search the web before answering.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int64
	Kind      model.RecordKind
	Domains   []string
}

// Completion is a model answer with its usage and cost.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Completer sends a prompt to one provider.
type Completer interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Estimate prices a call of the given size without making it.
	Estimate(inputTokens, outputTokens int64) float64
}

// AnthropicCompleter uses the Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
	calc   *cost.Calculator
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(client anthropic.Client, model string, calc *cost.Calculator) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model, calc: calc}
}

func (a *AnthropicCompleter) Provider() string { return "anthropic" }
func (a *AnthropicCompleter) Model() string    { return a.model }

func (a *AnthropicCompleter) Estimate(in, out int64) float64 {
	return a.calc.Claude(a.model, cost.Usage{Input: int(in), Output: int(out)})
}

// Complete implements Completer.
func (a *AnthropicCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: req.System}},
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	u := resp.Usage
	return &Completion{
		Text:         resp.Text(),
		Model:        a.model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD: a.calc.Claude(a.model, cost.Usage{
			Input:      int(u.InputTokens),
			Output:     int(u.OutputTokens),
			CacheWrite: int(u.CacheCreationInputTokens),
			CacheRead:  int(u.CacheReadInputTokens),
		}),
	}, nil
}

// PerplexityCompleter uses Perplexity chat completions, which answer from
// live web search.
type PerplexityCompleter struct {
	client perplexity.Client
	model  string
	calc   *cost.Calculator
}

// NewPerplexity creates a Perplexity completer. An empty model uses the
// client's default.
func NewPerplexity(client perplexity.Client, model string, calc *cost.Calculator) *PerplexityCompleter {
	return &PerplexityCompleter{client: client, model: model, calc: calc}
}

func (p *PerplexityCompleter) Provider() string { return "perplexity" }
func (p *PerplexityCompleter) Model() string    { return p.model }

func (p *PerplexityCompleter) Estimate(in, out int64) float64 {
	return p.calc.Perplexity(cost.Usage{Input: int(in), Output: int(out)})
}

// Complete implements Completer.
func (p *PerplexityCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	temp := 0.0
	maxTokens := int(req.MaxTokens)
	pr := perplexity.ChatCompletionRequest{
		Model: p.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature:        &temp,
		MaxTokens:          &maxTokens,
		SearchDomainFilter: req.Domains,
	}
	// Postings older than a month are rarely still open.
	if req.Kind == model.KindJob {
		pr.SearchRecencyFilter = perplexity.RecencyMonth
	}
	resp, err := p.client.ChatCompletion(ctx, pr)
	if err != nil {
		return nil, err
	}
	used := resp.Model
	if used == "" {
		used = p.model
	}
	return &Completion{
		Text:         resp.Text(),
		Model:        used,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		CostUSD:      p.calc.Perplexity(cost.Usage{Input: resp.Usage.PromptTokens, Output: resp.Usage.CompletionTokens}),
	}, nil
}

// ChatClient is the part of *openai.Client the OpenAI completer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient creates an OpenAI API client. baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// OpenAICompleter uses OpenAI chat completions.
type OpenAICompleter struct {
	client ChatClient
	model  string
	calc   *cost.Calculator
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(client ChatClient, model string, calc *cost.Calculator) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model, calc: calc}
}

func (o *OpenAICompleter) Provider() string { return "openai" }
func (o *OpenAICompleter) Model() string    { return o.model }

func (o *OpenAICompleter) Estimate(in, out int64) float64 {
	return o.calc.OpenAI(o.model, cost.Usage{Input: int(in), Output: int(out)})
}

// Complete implements Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: int(req.MaxTokens),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Wrap(resilience.ErrSourceUnavailable, "openai: no response choices")
	}
	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        o.model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		CostUSD:      o.calc.OpenAI(o.model, cost.Usage{Input: resp.Usage.PromptTokens, Output: resp.Usage.CompletionTokens}),
	}, nil
}

// classifyOpenAI maps go-openai errors onto the resilience taxonomy.
func classifyOpenAI(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == 0:
		return eris.Wrap(err, "openai: create chat completion")
	case status == http.StatusTooManyRequests:
		return resilience.NewRateLimitError("openai", nil)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(
			eris.Wrapf(resilience.ErrSourceUnavailable, "openai: status %d: %v", status, err), status)
	default:
		return eris.Wrapf(resilience.ErrSourceUnavailable, "openai: status %d: %v", status, err)
	}
}
