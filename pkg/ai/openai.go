package ai

import (
	"context"
	"fmt"
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
		Namespace: "portal",
		Subsystem: "ai",
		Name:      "narrative_duration_seconds",
		Help:      "Duration of AI narrative requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "ai",
		Name:      "narrative_failures_total",
		Help:      "Number of AI narrative failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI narrative writer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIWriter implements NarrativeWriter against the OpenAI chat completion API.
type OpenAIWriter struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIWriter builds a new writer using the provided configuration.
func NewOpenAIWriter(cfg OpenAIConfig) (*OpenAIWriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}

	tracer := otel.Tracer("github.com/noah-isme/sponsor-portal-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIWriter{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// WriteNarrative asks the model for a short, encouraging progress summary.
func (w *OpenAIWriter) WriteNarrative(parent context.Context, input NarrativeInput) (string, error) {
	ctx, span := w.tracer.Start(parent, "openai.narrative", trace.WithAttributes(
		attribute.String("model", w.cfg.Model),
		attribute.String("admission_number", input.AdmissionNumber),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       w.cfg.Model,
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: narrativeSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildNarrativePrompt(input),
			},
		},
	}

	resp, err := w.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(w.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", w.fail(span, fmt.Errorf("openai narrative: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", w.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)
	if narrative == "" {
		return "", w.fail(span, fmt.Errorf("empty narrative returned from openai"))
	}

	w.logger.Debug().
		Str("admission_number", input.AdmissionNumber).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("narrative generated")

	return narrative, nil
}

func (w *OpenAIWriter) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(w.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func narrativeSystemPrompt() string {
	return "You write concise, motivational progress reports for the sponsors of a student. Use a formal, encouraging tone, " +
		"stay under 200 words and only use facts from the provided notes."
}

func buildNarrativePrompt(input NarrativeInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Student\n")
	builder.WriteString(input.StudentName)
	builder.WriteString(" (")
	builder.WriteString(input.AdmissionNumber)
	builder.WriteString(")")
	if input.Department != "" {
		builder.WriteString(", ")
		builder.WriteString(input.Department)
	}
	builder.WriteString("\n\n## Term\n")
	builder.WriteString(input.TermName)
	builder.WriteString("\n\n## Summary\n")
	builder.WriteString(input.ExecutiveSummary)
	builder.WriteString("\n\n## Academic Overview\n")
	builder.WriteString(input.AcademicOverview)
	if input.Strengths != "" {
		builder.WriteString("\n\n## Strengths\n")
		builder.WriteString(input.Strengths)
	}
	if input.Challenges != "" {
		builder.WriteString("\n\n## Challenges\n")
		builder.WriteString(input.Challenges)
	}
	builder.WriteString("\n\n## Teacher's Remarks\n")
	builder.WriteString(input.ConcludingRemark)
	return builder.String()
}
