// Package llm defines the text-generation capability used by the
// classifier, risk scorer, triage and answer steps.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Generator produces text for a prompt. Implementations are external
// services and may fail or time out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("llm returned empty response")

var jsonBlock = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSON returns the outermost {...} block of text, or text itself
// when no block is present. Models often wrap JSON in prose or code fences.
func ExtractJSON(text string) string {
	if m := jsonBlock.FindString(text); m != "" {
		return m
	}
	return strings.TrimSpace(text)
}

// GenerateJSON runs prompt and decodes the JSON object found in the reply.
func GenerateJSON[T any](ctx context.Context, g Generator, prompt string) (T, error) {
	var out T
	text, err := g.Generate(ctx, prompt)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &out); err != nil {
		return out, fmt.Errorf("decode model output: %w", err)
	}
	return out, nil
}
