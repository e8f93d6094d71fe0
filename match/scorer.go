package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/poiesic/lostfound/core"
)

const (
	// Confidence bands for display.
	highConfidence   = 0.8
	mediumConfidence = 0.6

	// maxCommonKeywords caps the shared words reported with a result.
	maxCommonKeywords = 10

	containmentLocationScore = 0.7
	keywordLocationFactor    = 0.5
)

// locationKeywords are place words two otherwise different locations may share.
var locationKeywords = []string{
	"library", "center", "building", "cafe", "cafeteria",
	"hall", "room", "lab", "grounds", "parking",
}

// Weights sets how much each signal contributes to the composite score.
type Weights struct {
	Category    float64
	Title       float64
	Description float64
	Location    float64
}

// DefaultWeights returns the standard weighting: category 0.30, title 0.25,
// description 0.35 and location 0.10.
func DefaultWeights() Weights {
	return Weights{
		Category:    0.30,
		Title:       0.25,
		Description: 0.35,
		Location:    0.10,
	}
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Category, w.Title, w.Description, w.Location} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %v", ErrInvalidWeights, v)
		}
	}
	sum := w.Category + w.Title + w.Description + w.Location
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}
	return nil
}

// Scorer computes composite similarity between listings.
// It has no mutable state and is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer using weights.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Weights returns the weighting in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score compares candidate b against subject a.
// Listings of the same kind never match and score 0, as does a nil listing.
func (s *Scorer) Score(a, b *core.Listing) core.SimilarityResult {
	if a == nil || b == nil {
		return core.SimilarityResult{Confidence: core.ConfidenceLow}
	}
	result := core.SimilarityResult{
		SubjectID:          a.ID,
		CandidateID:        b.ID,
		CandidateOwnerID:   b.OwnerID,
		CandidateCreatedAt: b.CreatedAt,
		Confidence:         core.ConfidenceLow,
	}
	if a.Kind == b.Kind {
		return result
	}

	result.Breakdown = core.Breakdown{
		Category:    categoryScore(a.Category, b.Category),
		Title:       jaccard(tokenSet(a.Title), tokenSet(b.Title)),
		Description: jaccard(tokenSet(a.Description), tokenSet(b.Description)),
		Location:    locationScore(a.Location, b.Location),
	}

	score := result.Breakdown.Category*s.weights.Category +
		result.Breakdown.Title*s.weights.Title +
		result.Breakdown.Description*s.weights.Description +
		result.Breakdown.Location*s.weights.Location
	result.Score = min(max(score, 0), 1)
	result.Confidence = confidenceFor(result.Score)
	result.CommonKeywords = commonKeywords(a, b)
	return result
}

func categoryScore(a, b string) float64 {
	if a != "" && a == b {
		return 1
	}
	return 0
}

// locationScore rates two free-text locations: exact match 1, containment
// 0.7, otherwise half the share of place keywords they have in common.
func locationScore(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentLocationScore
	}

	keywordsA := keywordsIn(a)
	keywordsB := keywordsIn(b)
	if len(keywordsA) == 0 || len(keywordsB) == 0 {
		return 0
	}
	common := 0
	for kw := range keywordsA {
		if _, ok := keywordsB[kw]; ok {
			common++
		}
	}
	return float64(common) / float64(max(len(keywordsA), len(keywordsB))) * keywordLocationFactor
}

// keywordsIn returns the location keywords occurring anywhere in location.
func keywordsIn(location string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, kw := range locationKeywords {
		if strings.Contains(location, kw) {
			found[kw] = struct{}{}
		}
	}
	return found
}

func confidenceFor(score float64) core.Confidence {
	switch {
	case score >= highConfidence:
		return core.ConfidenceHigh
	case score >= mediumConfidence:
		return core.ConfidenceMedium
	default:
		return core.ConfidenceLow
	}
}

// commonKeywords lists the normalized words shared by the title and
// description of both listings, in order of first appearance in a.
func commonKeywords(a, b *core.Listing) []string {
	other := tokenSet(b.Title + " " + b.Description)
	seen := make(map[string]struct{})
	var common []string
	for _, token := range Normalize(a.Title + " " + a.Description) {
		if _, ok := other[token]; !ok {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		common = append(common, token)
		if len(common) == maxCommonKeywords {
			break
		}
	}
	return common
}
