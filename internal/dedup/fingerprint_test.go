package dedup

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func baseRequest() *domain.GenerationRequest {
	return &domain.GenerationRequest{
		RequestID:   uuid.New(),
		RequestedAt: time.Now(),
		OwnerID:     "user-1",
		Kind:        domain.KindQuiz,
		Topic:       "The French Revolution",
		Content:     "Some notes about 1789.",
		TargetCount: 10,
		Options: domain.Options{
			Difficulty:    "medium",
			QuestionTypes: []string{"true_false", "multiple_choice"},
		},
	}
}

func TestCompute_IgnoresNonSemanticFields(t *testing.T) {
	t.Parallel()

	a := baseRequest()
	b := baseRequest()
	b.RequestID = uuid.New()
	b.RequestedAt = a.RequestedAt.Add(time.Hour)
	b.OwnerID = "someone-else"

	assert.Equal(t, Compute(a), Compute(b))
}

func TestCompute_Normalization(t *testing.T) {
	t.Parallel()

	a := baseRequest()
	b := baseRequest()
	b.Topic = "  the   FRENCH revolution "
	b.Content = "Some notes\n about   1789."
	b.Options.Difficulty = "Medium"
	b.Options.QuestionTypes = []string{"Multiple_Choice", "true_false", "true_false"}

	assert.Equal(t, Compute(a), Compute(b))
}

func TestCompute_SourcesReplaceContent(t *testing.T) {
	t.Parallel()

	a := baseRequest()
	a.Sources = []domain.SourceRef{{ID: "b"}, {ID: "a"}}
	b := baseRequest()
	b.Content = "completely different inline text"
	b.Sources = []domain.SourceRef{{ID: "a"}, {ID: "b"}}

	assert.Equal(t, Compute(a), Compute(b), "source order and inline content do not matter")

	c := baseRequest()
	c.Sources = []domain.SourceRef{{ID: "a"}, {ID: "c"}}
	assert.NotEqual(t, Compute(a), Compute(c))
}

func TestCompute_SemanticFieldsChangeFingerprint(t *testing.T) {
	t.Parallel()

	base := Compute(baseRequest())
	mutations := map[string]func(r *domain.GenerationRequest){
		"kind":       func(r *domain.GenerationRequest) { r.Kind = domain.KindFlashcards },
		"topic":      func(r *domain.GenerationRequest) { r.Topic = "The Russian Revolution" },
		"content":    func(r *domain.GenerationRequest) { r.Content = "Other notes" },
		"target":     func(r *domain.GenerationRequest) { r.TargetCount = 11 },
		"difficulty": func(r *domain.GenerationRequest) { r.Options.Difficulty = "hard" },
		"types":      func(r *domain.GenerationRequest) { r.Options.QuestionTypes = []string{"matching"} },
		"language":   func(r *domain.GenerationRequest) { r.Options.Language = "fr" },
		"extra":      func(r *domain.GenerationRequest) { r.Options.Extra = map[string]string{"focus": "dates"} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := baseRequest()
			mutate(r)
			assert.NotEqual(t, base, Compute(r))
		})
	}
}

func TestCompute_Format(t *testing.T) {
	t.Parallel()

	fp := Compute(baseRequest())
	assert.Len(t, fp.String(), 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, fp.String())
}
