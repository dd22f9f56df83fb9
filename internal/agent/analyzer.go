package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/models"
)

// maxHighlights caps the highlight list carried into persistence.
const maxHighlights = 7

// AnalyzerResult carries a validated analysis plus the token usage
// reported by the completion endpoint, for run-level cost accounting.
type AnalyzerResult struct {
	Analysis     *models.AgentAnalysis
	InputTokens  int64
	OutputTokens int64
}

// Analyzer sends compiled prompts to the Claude API and parses the
// structured response. The model is treated as an untrusted data
// source: fences are stripped, enums and ranges are validated, and
// violations are rejected rather than coerced.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    arbor.ILogger
	validate  *validator.Validate
}

// NewAnalyzer creates a Claude-backed analyzer from configuration.
func NewAnalyzer(cfg *common.AnthropicConfig, logger arbor.ILogger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY or anthropic.api_key in config)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	a := &Analyzer{
		client:    anthropic.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
		logger:    logger,
		validate:  validator.New(),
	}

	logger.Debug().
		Str("model", a.model).
		Dur("timeout", timeout).
		Int64("max_tokens", a.maxTokens).
		Msg("Analyzer initialized")

	return a, nil
}

// Analyze compiles the context into a prompt, requests a completion,
// and returns the validated analysis with token usage.
func (a *Analyzer) Analyze(ctx context.Context, tickerCtx *models.TickerContext) (*AnalyzerResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := BuildAnalysisPrompt(tickerCtx)

	startTime := time.Now()
	a.logger.Debug().
		Str("ticker", tickerCtx.Ticker).
		Int("prompt_length", len(prompt)).
		Msg("Requesting analysis completion")

	message, err := a.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	var raw strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}
	if raw.Len() == 0 {
		return nil, fmt.Errorf("completion returned no text content")
	}

	analysis, err := a.parseResponse(raw.String())
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("ticker", tickerCtx.Ticker).
		Str("prediction", analysis.Prediction).
		Int("confidence", analysis.Confidence).
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Dur("duration", time.Since(startTime)).
		Msg("Analysis completed")

	return &AnalyzerResult{
		Analysis:     analysis,
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}

// rawAnalysis is the loosely-typed decode target for the model output.
// Confidence and highlights are decoded as untyped values so coercion
// and validation stay explicit.
type rawAnalysis struct {
	Prediction  string              `json:"prediction"`
	Confidence  any                 `json:"confidence"`
	SummaryES   string              `json:"summary_es"`
	SummaryEN   string              `json:"summary_en"`
	Highlights  []any               `json:"highlights"`
	ReasoningES string              `json:"reasoning_es"`
	ReasoningEN string              `json:"reasoning_en"`
	NewsSources []models.NewsSource `json:"news_sources"`
}

// parseResponse strips code fences, parses strict JSON, and validates
// the enum and range constraints.
func (a *Analyzer) parseResponse(raw string) (*models.AgentAnalysis, error) {
	cleaned := stripCodeFences(raw)

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		snippet := cleaned
		if runes := []rune(snippet); len(runes) > maxErrorSnippet {
			snippet = string(runes[:maxErrorSnippet])
		}
		return nil, &MalformedOutputError{Snippet: snippet}
	}

	switch parsed.Prediction {
	case models.PredictionUp, models.PredictionDown, models.PredictionSideways:
	default:
		return nil, &InvalidPredictionError{Value: parsed.Prediction}
	}

	confidence, err := coerceConfidence(parsed.Confidence)
	if err != nil {
		return nil, err
	}

	highlights := make([]string, 0, maxHighlights)
	for _, h := range parsed.Highlights {
		if len(highlights) == maxHighlights {
			break
		}
		if s, ok := h.(string); ok {
			highlights = append(highlights, s)
		} else {
			highlights = append(highlights, fmt.Sprintf("%v", h))
		}
	}

	analysis := &models.AgentAnalysis{
		Prediction:  parsed.Prediction,
		Confidence:  confidence,
		SummaryES:   parsed.SummaryES,
		SummaryEN:   parsed.SummaryEN,
		Highlights:  highlights,
		ReasoningES: parsed.ReasoningES,
		ReasoningEN: parsed.ReasoningEN,
		NewsSources: parsed.NewsSources,
	}

	if err := a.validate.Struct(analysis); err != nil {
		return nil, fmt.Errorf("analysis failed validation: %w", err)
	}

	return analysis, nil
}

// coerceConfidence accepts a numeric confidence (or its string form)
// and rounds it to the nearest integer. Values outside [0, 100] or
// non-numeric values are rejected.
func coerceConfidence(raw any) (int, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, &InvalidConfidenceError{Value: raw}
		}
		f = parsed
	default:
		return 0, &InvalidConfidenceError{Value: raw}
	}

	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, &InvalidConfidenceError{Value: raw}
	}
	return int(math.Round(f)), nil
}

// stripCodeFences removes a leading ```json (or bare ```) marker and a
// trailing ``` marker. The model is instructed not to emit fences, but
// responses are treated as untrusted.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimLeft(s, " \t\r\n")
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimRight(s[:len(s)-3], " \t\r\n")
	}
	return s
}
