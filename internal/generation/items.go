package generation

import (
	"encoding/json"
	"strings"

	"github.com/phrazzld/scry-forge/internal/domain"
)

// chunkItems is the validated output of one chunk.
type chunkItems struct {
	items    []domain.Item
	returned int
	dropped  int
	meta     *domain.Metadata
}

// extractItems turns a parsed value into validated items of kind. Invalid
// items are dropped and counted.
func extractItems(kind domain.ArtifactKind, value any) chunkItems {
	raw := parserShape(kind).Items(value)

	out := chunkItems{returned: len(raw), meta: extractMetadata(value)}
	for _, v := range raw {
		encoded, err := json.Marshal(v)
		if err != nil {
			out.dropped++
			continue
		}
		item, err := domain.DecodeItem(kind, encoded)
		if err != nil {
			out.dropped++
			continue
		}
		out.items = append(out.items, item)
	}
	return out
}

func extractMetadata(value any) *domain.Metadata {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	var meta domain.Metadata
	if s, ok := obj["title"].(string); ok {
		meta.Title = strings.TrimSpace(s)
	}
	if s, ok := obj["description"].(string); ok {
		meta.Description = strings.TrimSpace(s)
	}
	if meta.Empty() {
		return nil
	}
	return &meta
}

// shuffleItems permutes items and the choices inside quiz questions.
// Matching questions keep Pairs as the answer key and get a shuffled
// RightColumn.
func shuffleItems(items []domain.Item, shuffle Shuffler) {
	shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	for _, it := range items {
		q, ok := it.(*domain.QuizQuestion)
		if !ok {
			continue
		}
		switch q.Type {
		case domain.QuestionMultipleChoice:
			shuffle(len(q.Options), func(i, j int) { q.Options[i], q.Options[j] = q.Options[j], q.Options[i] })
		case domain.QuestionMatching:
			col := make([]string, len(q.Pairs))
			for i, p := range q.Pairs {
				col[i] = p.Right
			}
			shuffle(len(col), func(i, j int) { col[i], col[j] = col[j], col[i] })
			q.RightColumn = col
		}
	}
}

func encodeItems(items []domain.Item) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// headlines returns the headline of every stored item that still decodes.
func headlines(kind domain.ArtifactKind, stored []json.RawMessage) []string {
	out := make([]string, 0, len(stored))
	for _, raw := range stored {
		item, err := domain.NewItem(kind)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(raw, item); err != nil {
			continue
		}
		if h := strings.TrimSpace(item.Headline()); h != "" {
			out = append(out, h)
		}
	}
	return out
}
