package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ArtifactKind identifies the type of learning artifact being generated.
type ArtifactKind string

// Supported artifact kinds
const (
	KindQuiz       ArtifactKind = "quiz"
	KindFlashcards ArtifactKind = "flashcards"
	KindGuide      ArtifactKind = "guide"
	KindSummary    ArtifactKind = "summary"
)

// AllKinds lists every supported artifact kind in a stable order.
var AllKinds = []ArtifactKind{KindQuiz, KindFlashcards, KindGuide, KindSummary}

// Valid reports whether k is a supported artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindQuiz, KindFlashcards, KindGuide, KindSummary:
		return true
	}
	return false
}

// ParseArtifactKind converts a user supplied string into an ArtifactKind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	k := ArtifactKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// MaxTargetCount returns the largest item count accepted for the kind.
func MaxTargetCount(k ArtifactKind) int {
	switch k {
	case KindQuiz:
		return 50
	case KindGuide:
		return 40
	case KindFlashcards, KindSummary:
		return 100
	}
	return 0
}

// SourceRef points at an uploaded source document. Its content is resolved
// outside of the request.
type SourceRef struct {
	ID        string `json:"id"                   validate:"required,max=200"`
	MediaType string `json:"media_type,omitempty" validate:"omitempty,max=100"`
}

// Multimodal reports whether the source needs a provider that accepts
// non-text input.
func (s SourceRef) Multimodal() bool {
	mt := strings.ToLower(s.MediaType)
	return strings.HasPrefix(mt, "image/") ||
		strings.HasPrefix(mt, "audio/") ||
		strings.HasPrefix(mt, "video/") ||
		mt == "application/pdf"
}

// Options holds the generation options that affect the produced artifact.
type Options struct {
	Difficulty    string            `json:"difficulty,omitempty"     validate:"omitempty,oneof=easy medium hard mixed"`
	QuestionTypes []string          `json:"question_types,omitempty" validate:"omitempty,dive,oneof=multiple_choice true_false short_answer matching"`
	Language      string            `json:"language,omitempty"       validate:"omitempty,max=16"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// GenerationRequest is a request to produce one learning artifact.
//
// RequestID, RequestedAt and OwnerID identify the submission but carry no
// meaning for the produced content.
type GenerationRequest struct {
	RequestID   uuid.UUID    `json:"request_id"`
	RequestedAt time.Time    `json:"requested_at"`
	OwnerID     string       `json:"owner_id,omitempty"`
	Kind        ArtifactKind `json:"kind"              validate:"required"`
	Topic       string       `json:"topic,omitempty"   validate:"max=500"`
	Content     string       `json:"content,omitempty" validate:"max=200000"`
	Sources     []SourceRef  `json:"sources,omitempty" validate:"omitempty,max=20,dive"`
	TargetCount int          `json:"target_count"      validate:"gte=1"`
	Options     Options      `json:"options"`
}

var validate = validator.New()

// Validate checks that the request can be scheduled.
// All failures wrap ErrValidation.
func (r *GenerationRequest) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidKind, r.Kind)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(r.Topic) == "" && strings.TrimSpace(r.Content) == "" && len(r.Sources) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingInput)
	}
	if limit := MaxTargetCount(r.Kind); r.TargetCount > limit {
		return fmt.Errorf("%w: %w: %d exceeds %d for %s",
			ErrValidation, ErrTargetOutOfRange, r.TargetCount, limit, r.Kind)
	}
	return nil
}

// SourcesOnly reports whether sources are the request's only input.
func (r *GenerationRequest) SourcesOnly() bool {
	return len(r.Sources) > 0 && strings.TrimSpace(r.Topic) == "" && strings.TrimSpace(r.Content) == ""
}

// HasMultimodalSources reports whether any source requires multimodal input.
func (r *GenerationRequest) HasMultimodalSources() bool {
	for _, s := range r.Sources {
		if s.Multimodal() {
			return true
		}
	}
	return false
}
