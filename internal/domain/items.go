package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one validated element of an artifact.
type Item interface {
	// Validate checks the item against the rules of its kind.
	Validate() error
	// Headline is a short label used to tell the provider what already exists.
	Headline() string
}

// Quiz question types
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
	QuestionMatching       = "matching"
)

// MatchingPair is one row of a matching question.
type MatchingPair struct {
	Left  string `json:"left"  validate:"required"`
	Right string `json:"right" validate:"required"`
}

// QuizQuestion is a single quiz item.
type QuizQuestion struct {
	Type        string         `json:"type"                  validate:"required,oneof=multiple_choice true_false short_answer matching"`
	Question    string         `json:"question"              validate:"required"`
	Options     []string       `json:"options,omitempty"`
	Answer      string         `json:"answer,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Pairs       []MatchingPair `json:"pairs,omitempty"       validate:"omitempty,dive"`
	// RightColumn is the presentation order of the right-hand values of a
	// matching question. Pairs remains the answer key.
	RightColumn []string `json:"right_column,omitempty"`
}

// Validate implements Item.
func (q *QuizQuestion) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least two options", ErrInvalidItem)
		}
		for _, opt := range q.Options {
			if opt == q.Answer {
				return nil
			}
		}
		return fmt.Errorf("%w: answer is not one of the options", ErrInvalidItem)
	case QuestionTrueFalse:
		a := strings.ToLower(strings.TrimSpace(q.Answer))
		if a != "true" && a != "false" {
			return fmt.Errorf("%w: true/false answer must be true or false", ErrInvalidItem)
		}
	case QuestionShortAnswer:
		if strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("%w: short answer needs an answer", ErrInvalidItem)
		}
	case QuestionMatching:
		if len(q.Pairs) < 2 {
			return fmt.Errorf("%w: matching needs at least two pairs", ErrInvalidItem)
		}
	}
	return nil
}

// Headline implements Item.
func (q *QuizQuestion) Headline() string { return q.Question }

// Flashcard is a single flashcard.
type Flashcard struct {
	Front string   `json:"front"          validate:"required"`
	Back  string   `json:"back"           validate:"required"`
	Hint  string   `json:"hint,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Validate implements Item.
func (c *Flashcard) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

// Headline implements Item.
func (c *Flashcard) Headline() string { return c.Front }

// GuideSection is one section of a study guide.
type GuideSection struct {
	Heading   string   `json:"heading"              validate:"required"`
	Body      string   `json:"body"                 validate:"required"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// Validate implements Item.
func (g *GuideSection) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

// Headline implements Item.
func (g *GuideSection) Headline() string { return g.Heading }

// SummaryPoint is one point of a summary.
type SummaryPoint struct {
	Point  string `json:"point"            validate:"required"`
	Detail string `json:"detail,omitempty"`
}

// Validate implements Item.
func (p *SummaryPoint) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

// Headline implements Item.
func (p *SummaryPoint) Headline() string { return p.Point }

// NewItem returns an empty item of the variant used by kind.
func NewItem(kind ArtifactKind) (Item, error) {
	switch kind {
	case KindQuiz:
		return &QuizQuestion{}, nil
	case KindFlashcards:
		return &Flashcard{}, nil
	case KindGuide:
		return &GuideSection{}, nil
	case KindSummary:
		return &SummaryPoint{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// DecodeItem decodes and validates a single raw item for kind.
func DecodeItem(kind ArtifactKind, raw json.RawMessage) (Item, error) {
	item, err := NewItem(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// ItemsKey is the object key under which a provider returns the items of kind.
func ItemsKey(kind ArtifactKind) string {
	switch kind {
	case KindQuiz:
		return "questions"
	case KindFlashcards:
		return "cards"
	case KindGuide:
		return "sections"
	case KindSummary:
		return "points"
	}
	return "items"
}
