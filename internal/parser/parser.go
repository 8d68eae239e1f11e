package parser

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-forge/internal/platform/metrics"
)

// Strategy names, in the order Parse tries them.
const (
	StrategyBoundary  = "boundary"
	StrategyFence     = "fence"
	StrategyLenient   = "lenient"
	StrategySanitized = "sanitized"
	StrategyStream    = "stream"
	StrategyStrict    = "strict"
)

// Strategy is one way of turning text into a decoded value.
type Strategy struct {
	Name string
	// Cleaned selects the fence-stripped, trimmed text as input instead of
	// the raw text.
	Cleaned bool
	Decode  func(text string) (any, error)
}

// DefaultStrategies returns the strategies in precision order. The order
// trades precision for recall and is part of the contract.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyBoundary, Decode: ExtractBoundary},
		{Name: StrategyFence, Decode: ExtractFence},
		{Name: StrategyLenient, Cleaned: true, Decode: DecodeLenient},
		{Name: StrategySanitized, Cleaned: true, Decode: DecodeSanitized},
		{Name: StrategyStream, Cleaned: true, Decode: DecodeStream},
		{Name: StrategyStrict, Cleaned: true, Decode: DecodeStrict},
	}
}

// Shape describes the value the caller expects: either a bare array of
// items, or an object holding the items array under ItemsKey. An empty
// ItemsKey accepts any object or array.
type Shape struct {
	ItemsKey string
}

// Conforms reports whether v has the expected shape.
func (s Shape) Conforms(v any) bool {
	switch t := v.(type) {
	case []any:
		return true
	case map[string]any:
		if s.ItemsKey == "" {
			return true
		}
		_, ok := t[s.ItemsKey].([]any)
		return ok
	}
	return false
}

// Items returns the item list of a conforming value.
func (s Shape) Items(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if items, ok := t[s.ItemsKey].([]any); ok {
			return items
		}
	}
	return nil
}

// Result is a successfully decoded value and the strategy that produced it.
type Result struct {
	Value    any
	Strategy string
}

// Parser runs strategies in order.
type Parser struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New creates a Parser with the default strategies.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		strategies: DefaultStrategies(),
		logger:     logger.With("component", "response_parser"),
	}
}

// Parse returns the first conforming value produced by a strategy. When
// every strategy fails it returns an *ExhaustedError; it never panics on
// malformed input.
func (p *Parser) Parse(text string, shape Shape) (Result, error) {
	cleaned := Clean(text)
	attempts := make([]Attempt, 0, len(p.strategies))

	for _, s := range p.strategies {
		input := text
		if s.Cleaned {
			input = cleaned
		}
		v, err := safeDecode(s, input)
		if err == nil && !shape.Conforms(v) {
			err = ErrShapeMismatch
		}
		if err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name, Err: err})
			continue
		}

		if len(attempts) > 0 {
			p.logger.Debug("parse recovered by fallback strategy",
				"strategy", s.Name,
				"failed_strategies", len(attempts))
		}
		metrics.RecordParse(s.Name)
		return Result{Value: v, Strategy: s.Name}, nil
	}

	metrics.RecordParse("exhausted")
	return Result{}, newExhaustedError(text, attempts)
}

// safeDecode runs one strategy, turning a panic into a failed attempt.
func safeDecode(s Strategy, input string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Decode(input)
}

// Parse runs the default strategies with the default logger.
func Parse(text string, shape Shape) (Result, error) {
	return New(nil).Parse(text, shape)
}
