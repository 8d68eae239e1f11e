package generation

import (
	"math/rand/v2"
	"strings"

	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/routing"
)

// DefaultMaxChunks is the ceiling on chunk executions for one job.
const DefaultMaxChunks = 10

// Complexity thresholds
const (
	complexContentLen = 20000
	complexTarget     = 30
	simpleTarget      = 10
)

// ChunkSize returns how many items one chunk of kind asks for.
func ChunkSize(kind domain.ArtifactKind) int {
	switch kind {
	case domain.KindQuiz:
		return 5
	case domain.KindGuide:
		return 4
	case domain.KindFlashcards, domain.KindSummary:
		return 10
	}
	return 5
}

// Shuffles reports whether items of kind are shuffled after each chunk.
func Shuffles(kind domain.ArtifactKind) bool {
	return kind == domain.KindQuiz
}

// Complexity derives the routing hint for a request.
func Complexity(req *domain.GenerationRequest) routing.Complexity {
	difficulty := strings.ToLower(req.Options.Difficulty)
	switch {
	case difficulty == "hard",
		len(req.Content) > complexContentLen,
		req.TargetCount > complexTarget:
		return routing.ComplexityComplex
	case difficulty == "easy" && req.TargetCount <= simpleTarget:
		return routing.ComplexitySimple
	}
	return routing.ComplexityStandard
}

// Shuffler permutes n elements through swap.
type Shuffler func(n int, swap func(i, j int))

// DefaultShuffler uses the global math/rand/v2 source.
func DefaultShuffler(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}
