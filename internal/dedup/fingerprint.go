package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/phrazzld/scry-forge/internal/domain"
)

// Fingerprint is a hex encoded SHA-256 digest of the semantic content of a
// generation request.
type Fingerprint string

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return string(f) }

// canonicalRequest is the projection of a request that participates in the
// fingerprint. Field order is fixed by the struct, map keys are sorted by
// encoding/json.
type canonicalRequest struct {
	Kind          string            `json:"kind"`
	Topic         string            `json:"topic"`
	Content       string            `json:"content,omitempty"`
	SourceIDs     []string          `json:"source_ids,omitempty"`
	TargetCount   int               `json:"target_count"`
	Difficulty    string            `json:"difficulty,omitempty"`
	QuestionTypes []string          `json:"question_types,omitempty"`
	Language      string            `json:"language,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Compute returns the fingerprint of req. Request identifiers, timestamps and
// the owner never participate, so two submissions of the same content always
// collide. When sources are present their sorted IDs are hashed in place of
// the inline content.
func Compute(req *domain.GenerationRequest) Fingerprint {
	c := canonicalRequest{
		Kind:        strings.ToLower(string(req.Kind)),
		Topic:       strings.ToLower(normalizeText(req.Topic)),
		TargetCount: req.TargetCount,
		Difficulty:  strings.ToLower(strings.TrimSpace(req.Options.Difficulty)),
		Language:    strings.ToLower(strings.TrimSpace(req.Options.Language)),
	}

	if len(req.Sources) > 0 {
		ids := make([]string, 0, len(req.Sources))
		for _, s := range req.Sources {
			ids = append(ids, strings.TrimSpace(s.ID))
		}
		sort.Strings(ids)
		c.SourceIDs = ids
	} else {
		c.Content = normalizeText(req.Content)
	}

	if len(req.Options.QuestionTypes) > 0 {
		types := make([]string, 0, len(req.Options.QuestionTypes))
		seen := make(map[string]struct{}, len(req.Options.QuestionTypes))
		for _, qt := range req.Options.QuestionTypes {
			qt = strings.ToLower(strings.TrimSpace(qt))
			if _, dup := seen[qt]; dup || qt == "" {
				continue
			}
			seen[qt] = struct{}{}
			types = append(types, qt)
		}
		sort.Strings(types)
		c.QuestionTypes = types
	}

	if len(req.Options.Extra) > 0 {
		c.Extra = make(map[string]string, len(req.Options.Extra))
		for k, v := range req.Options.Extra {
			c.Extra[strings.ToLower(strings.TrimSpace(k))] = normalizeText(v)
		}
	}

	// Marshalling a struct of strings, ints and string maps cannot fail.
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// normalizeText trims s and collapses internal whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
