// Package slides implements slide deck generation on top of a text generator.
package slides

import (
	"context"
	"errors"
	"strings"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
	"github.com/FreePeak/smart-slides/internal/infrastructure/metrics"
)

// SystemPrompt instructs the model to answer with a slide deck JSON object.
const SystemPrompt = `You are a presentation slide generator. Generate a JSON object containing a list of slides.
Each slide should have:
- title: A concise title for the slide (string)
- content: A list of bullet points as strings (list of strings)
- theme: A theme name like 'professional', 'creative', 'modern', 'minimalist', etc. (string)

Return ONLY valid JSON in this exact format:
{
  "slides": [
    {
      "title": "Slide Title",
      "content": ["Bullet point 1", "Bullet point 2", "Bullet point 3"],
      "theme": "professional"
    }
  ]
}

Make sure the JSON is valid and properly formatted. Generate 3-8 slides based on the user's prompt.`

// Service turns a free-text prompt into a validated slide deck.
type Service struct {
	generator    domain.TextGenerator
	systemPrompt string
	logger       *logging.Logger
}

// Config contains configuration for the Service.
type Config struct {
	Generator domain.TextGenerator
	// SystemPrompt overrides the default instruction when set.
	SystemPrompt string
	Logger       *logging.Logger
}

// NewService creates a new Service.
func NewService(config Config) *Service {
	prompt := config.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		generator:    config.Generator,
		systemPrompt: prompt,
		logger:       logger.Named("slides"),
	}
}

// Generate asks the generator for a deck exactly once and validates the
// answer. Every failure is a *domain.GenerationError.
func (s *Service) Generate(ctx context.Context, prompt string) (domain.Deck, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GenerationDuration)

	deck, err := s.generate(ctx, prompt)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.GenerationRequests.WithLabelValues(string(kind)).Inc()
		s.logger.WarnContext(ctx, "Slide generation failed", logging.Fields{
			"kind":        string(kind),
			"error":       err.Error(),
			"duration_ms": timer.Duration().Milliseconds(),
		})
		return domain.Deck{}, err
	}

	metrics.GenerationRequests.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "Generated slide deck", logging.Fields{
		"slides":      len(deck.Slides),
		"duration_ms": timer.Duration().Milliseconds(),
	})
	return deck, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (domain.Deck, error) {
	if s.generator == nil {
		return domain.Deck{}, domain.ErrMissingCredential
	}

	text, err := s.generator.Complete(ctx, s.systemPrompt, prompt)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			return domain.Deck{}, err
		}
		return domain.Deck{}, domain.NewGenerationError(domain.KindUpstream, "Text generation failed", err)
	}

	if strings.TrimSpace(text) == "" {
		return domain.Deck{}, domain.NewGenerationError(domain.KindEmptyResponse, "Model returned an empty response", nil)
	}

	return domain.ParseDeck([]byte(text))
}
