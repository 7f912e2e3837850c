// Package domain defines the core entities shared by the slide generation
// path and the real-time collaboration path.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Slide is one generated slide.
type Slide struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
	Theme   string   `json:"theme"`
}

// Deck is the ordered result of a generation.
type Deck struct {
	Slides []Slide `json:"slides"`
}

// TextGenerator is the external text-generation service. Implementations
// return the raw model output or a *GenerationError.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ParseDeck decodes model output into a Deck and validates every slide.
// Field presence and element types are checked on the raw JSON so that a
// missing key is never mistaken for a zero value.
func ParseDeck(raw []byte) (Deck, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		if !json.Valid(raw) {
			return Deck{}, NewGenerationError(KindMalformedJSON, "Failed to parse JSON response", err)
		}
		return Deck{}, validationFailure("slides", "Response missing 'slides' key")
	}

	slidesRaw, ok := root["slides"]
	if !ok {
		return Deck{}, validationFailure("slides", "Response missing 'slides' key")
	}

	var items []json.RawMessage
	if !isJSONArray(slidesRaw) || json.Unmarshal(slidesRaw, &items) != nil {
		return Deck{}, validationFailure("slides", "'slides' must be a list")
	}

	deck := Deck{Slides: make([]Slide, 0, len(items))}
	for i, item := range items {
		slide, err := parseSlide(item)
		if err != nil {
			path := fmt.Sprintf("slides[%d]", i)
			if err.Field != "" {
				path += "." + err.Field
			}
			err.Field = path
			return Deck{}, NewGenerationError(KindValidation, "Invalid slide deck", err)
		}
		deck.Slides = append(deck.Slides, slide)
	}
	return deck, nil
}

func parseSlide(raw json.RawMessage) (Slide, *ValidationError) {
	var fields map[string]json.RawMessage
	if !isJSONObject(raw) || json.Unmarshal(raw, &fields) != nil {
		return Slide{}, NewValidationError("", "Each slide must be a dictionary")
	}

	titleRaw, hasTitle := fields["title"]
	contentRaw, hasContent := fields["content"]
	themeRaw, hasTheme := fields["theme"]
	if !hasTitle || !hasContent || !hasTheme {
		return Slide{}, NewValidationError("", "Each slide must have 'title', 'content', and 'theme' keys")
	}

	var slide Slide
	if !isJSONString(titleRaw) || json.Unmarshal(titleRaw, &slide.Title) != nil {
		return Slide{}, NewValidationError("title", "Slide title must be a string")
	}
	if strings.TrimSpace(slide.Title) == "" {
		return Slide{}, NewValidationError("title", "Slide title must be a non-empty string")
	}

	var bullets []json.RawMessage
	if !isJSONArray(contentRaw) || json.Unmarshal(contentRaw, &bullets) != nil {
		return Slide{}, NewValidationError("content", "Slide content must be a list")
	}
	slide.Content = make([]string, 0, len(bullets))
	for _, b := range bullets {
		var s string
		if !isJSONString(b) || json.Unmarshal(b, &s) != nil {
			return Slide{}, NewValidationError("content", "Slide content must be a list of strings")
		}
		slide.Content = append(slide.Content, s)
	}

	if !isJSONString(themeRaw) || json.Unmarshal(themeRaw, &slide.Theme) != nil {
		return Slide{}, NewValidationError("theme", "Slide theme must be a string")
	}
	return slide, nil
}

func validationFailure(field, message string) *GenerationError {
	return NewGenerationError(KindValidation, "Invalid slide deck", NewValidationError(field, message))
}

func firstByte(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func isJSONObject(raw []byte) bool { return firstByte(raw) == '{' }
func isJSONArray(raw []byte) bool  { return firstByte(raw) == '[' }
func isJSONString(raw []byte) bool { return firstByte(raw) == '"' }
