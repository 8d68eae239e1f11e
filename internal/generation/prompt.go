package generation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/scry-forge/internal/domain"
)

// maxHeadlines caps how many existing items are listed in a prompt.
const maxHeadlines = 60

type promptData struct {
	Kind          domain.ArtifactKind
	Count         int
	Chunk         int
	Topic         string
	Content       string
	Difficulty    string
	Language      string
	QuestionTypes string
	ItemsKey      string
	WantMetadata  bool
	Existing      []string
	Extra         map[string]string
}

const promptHeader = `You are an expert educator creating study material.
{{- if .Topic}}
Topic: {{.Topic}}
{{- end}}
{{- if .Difficulty}}
Difficulty: {{.Difficulty}}
{{- end}}
{{- if .Language}}
Write in this language: {{.Language}}
{{- end}}
{{- range $k, $v := .Extra}}
{{$k}}: {{$v}}
{{- end}}
{{- if .Content}}

Source material:
"""
{{.Content}}
"""
{{- end}}
{{- if .Existing}}

These items already exist. Do not repeat or rephrase them:
{{- range .Existing}}
- {{.}}
{{- end}}
{{- end}}
`

const promptFooter = `
Respond with a single JSON object and nothing else. Put the items in an array under "{{.ItemsKey}}".
{{- if .WantMetadata}}
Also include a short "title" and a one sentence "description" for the whole set.
{{- end}}
`

var kindBodies = map[domain.ArtifactKind]string{
	domain.KindQuiz: `
Write {{.Count}} quiz questions.
{{- if .QuestionTypes}} Use only these question types: {{.QuestionTypes}}.{{end}}
Each question has "type" (multiple_choice, true_false, short_answer or matching), "question",
and "explanation". Multiple choice questions have "options" and an "answer" equal to one option.
True/false questions have "answer" set to "true" or "false". Short answer questions have an
"answer". Matching questions have "pairs", a list of {"left", "right"} objects.
`,
	domain.KindFlashcards: `
Write {{.Count}} flashcards. Each card has "front", "back", an optional "hint" and optional "tags".
`,
	domain.KindGuide: `
Write {{.Count}} study guide sections. Each section has "heading", "body" and "key_points".
`,
	domain.KindSummary: `
Write {{.Count}} summary points. Each point has "point" and an optional "detail".
`,
}

var promptTemplates = func() map[domain.ArtifactKind]*template.Template {
	out := make(map[domain.ArtifactKind]*template.Template, len(kindBodies))
	for kind, body := range kindBodies {
		out[kind] = template.Must(template.New(string(kind)).Parse(promptHeader + body + promptFooter))
	}
	return out
}()

// BuildPrompt renders the prompt for one chunk. content is the request
// content with any resolved source text appended; existing holds the
// headlines of items already produced.
func BuildPrompt(req *domain.GenerationRequest, chunk, count int, content string, existing []string) (string, error) {
	tmpl, ok := promptTemplates[req.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, req.Kind)
	}
	if len(existing) > maxHeadlines {
		existing = existing[len(existing)-maxHeadlines:]
	}

	data := promptData{
		Kind:          req.Kind,
		Count:         count,
		Chunk:         chunk,
		Topic:         strings.TrimSpace(req.Topic),
		Content:       strings.TrimSpace(content),
		Difficulty:    req.Options.Difficulty,
		Language:      req.Options.Language,
		QuestionTypes: strings.Join(req.Options.QuestionTypes, ", "),
		ItemsKey:      domain.ItemsKey(req.Kind),
		WantMetadata:  chunk == 1,
		Existing:      existing,
		Extra:         req.Options.Extra,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
