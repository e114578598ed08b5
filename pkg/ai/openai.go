package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "scoring_duration_seconds",
		Help:      "Duration of AI scoring requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "scoring_failures_total",
		Help:      "Number of AI scoring failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI scorer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIScorer implements Scorer against the OpenAI chat completion API.
type OpenAIScorer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIScorer builds a new scorer using the provided configuration.
func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-grading-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIScorer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_scorer").Logger(),
	}, nil
}

// Score sends the answer to OpenAI and decodes the JSON verdict.
func (s *OpenAIScorer) Score(parent context.Context, req ScoreRequest) (ScoreResponse, error) {
	ctx, span := s.tracer.Start(parent, "openai.score", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
		attribute.Int64("question_id", int64(req.QuestionID)),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scorerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return ScoreResponse{}, s.fail(span, fmt.Errorf("openai score: %w", err))
	}

	if len(resp.Choices) == 0 {
		return ScoreResponse{}, s.fail(span, fmt.Errorf("%w: no choices returned from openai", ErrMalformedResponse))
	}

	result, err := parseScoreResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return ScoreResponse{}, s.fail(span, err)
	}

	s.logger.Debug().
		Uint("question_id", req.QuestionID).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("answer scored")

	return result, nil
}

func (s *OpenAIScorer) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(s.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func scorerSystemPrompt() string {
	return "You are an exam grader. Compare the student answer with the reference answer and respond with a JSON object " +
		"containing score (0 to max_points), is_correct (boolean), confidence_score (0-1) and analysis_note (string)."
}

func buildUserPrompt(req ScoreRequest) string {
	builder := strings.Builder{}
	if req.Prompt != "" {
		builder.WriteString("# Question\n")
		builder.WriteString(req.Prompt)
		builder.WriteString("\n\n")
	}
	builder.WriteString("## Max Points\n")
	builder.WriteString(strconv.FormatFloat(req.MaxPoints, 'f', -1, 64))
	builder.WriteString("\n\n## Reference Answer\n")
	builder.WriteString(req.ReferenceAnswer)
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(req.AnswerText)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseScoreResponse(content string) (ScoreResponse, error) {
	type payload struct {
		Score           *float64 `json:"score"`
		IsCorrect       bool     `json:"is_correct"`
		ConfidenceScore *float64 `json:"confidence_score"`
		AnalysisNote    string   `json:"analysis_note"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return ScoreResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if data.Score == nil || data.ConfidenceScore == nil {
		return ScoreResponse{}, fmt.Errorf("%w: score and confidence_score are required", ErrMalformedResponse)
	}

	return ScoreResponse{
		Score:           *data.Score,
		IsCorrect:       data.IsCorrect,
		ConfidenceScore: *data.ConfidenceScore,
		AnalysisNote:    data.AnalysisNote,
	}, nil
}
