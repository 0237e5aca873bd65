package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/markwise/markwise-server/internal/core"
)

const (
	// DefaultRunTimeout bounds one inference call including network time.
	DefaultRunTimeout = 90 * time.Second

	// maxOutputTokens caps the grader's response size.
	maxOutputTokens = 4096
)

// ErrAPIKeyNotSet is returned when the OpenAI API key is missing.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// OpenAIProvider implements Provider against the OpenAI chat completions
// API with a JSON response contract.
type OpenAIProvider struct {
	client  openai.Client
	timeout time.Duration
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return &OpenAIProvider{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		timeout: DefaultRunTimeout,
	}, nil
}

// SetTimeout overrides the per-call timeout.
func (p *OpenAIProvider) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// graderResponse is the JSON shape the model is instructed to return.
// Validated explicitly at this boundary; provider output is never
// trusted implicitly.
type graderResponse struct {
	Percentage   float64            `json:"percentage"`
	Strengths    []core.Strength    `json:"strengths"`
	Improvements []core.Improvement `json:"improvements"`
	LanguageTips []core.LanguageTip `json:"language_tips"`
	Resources    []core.Resource    `json:"resources"`
}

func (p *OpenAIProvider) Infer(ctx context.Context, req InferRequest) (*Inference, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(graderSystemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(maxOutputTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &TransientError{Err: errors.New("no completion choices returned")}
	}

	var parsed graderResponse
	content := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// A malformed body is worth one more attempt at a different
		// sample; treat as transient.
		return nil, &TransientError{Err: fmt.Errorf("malformed grader response: %w", err)}
	}
	if parsed.Percentage < 0 || parsed.Percentage > 100 {
		return nil, &TransientError{Err: fmt.Errorf("percentage %v outside [0, 100]", parsed.Percentage)}
	}

	return &Inference{
		Percentage: parsed.Percentage,
		Feedback: core.Feedback{
			Strengths:    parsed.Strengths,
			Improvements: parsed.Improvements,
			LanguageTips: parsed.LanguageTips,
			Resources:    parsed.Resources,
		},
		CostCents: estimateCostCents(req.Model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens),
	}, nil
}

// classifyError maps SDK errors to the transient/permanent split the
// orchestrator's retry policy keys on.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientError{Err: err}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return &TransientError{Err: err}
		}
		return err
	}
	// Network-level failures without a status code
	return &TransientError{Err: err}
}

// estimateCostCents converts token usage to hundredths of a credit using
// a coarse per-model rate. Exact billing reconciliation happens offline;
// this figure feeds the job's cost_cents for operator visibility.
func estimateCostCents(model string, promptTokens, completionTokens int64) int64 {
	// cents per 1M tokens
	var inRate, outRate int64 = 15, 60
	if strings.HasPrefix(model, "gpt-4o") && !strings.Contains(model, "mini") {
		inRate, outRate = 250, 1000
	}
	cost := (promptTokens*inRate + completionTokens*outRate) / 1_000_000
	if cost < 1 {
		cost = 1
	}
	return cost
}

const graderSystemPrompt = `You are an experienced essay examiner. Grade the essay against the assignment brief and rubric. Respond with a single JSON object:
{
  "percentage": <number 0-100>,
  "strengths": [{"title": "...", "description": "...", "evidence": "..."}],
  "improvements": [{"title": "...", "description": "...", "suggestion": "...", "detailed_suggestions": ["..."]}],
  "language_tips": [{"category": "...", "feedback": "..."}],
  "resources": [{"title": "...", "url": "..."}]
}`

func buildPrompt(req InferRequest) string {
	var sb strings.Builder
	sb.WriteString("Assignment brief:\n")
	sb.WriteString(req.Brief)
	if req.Rubric != "" {
		sb.WriteString("\n\nRubric:\n")
		sb.WriteString(req.Rubric)
	}
	sb.WriteString("\n\nEssay:\n")
	sb.WriteString(req.EssayText)
	return sb.String()
}
