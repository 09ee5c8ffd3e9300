package match

import (
	"math"
	"sort"

	"github.com/commercebridge/visearch/pkg/models"
)

// normEpsilon guards the cosine denominator so zero vectors score 0 instead
// of dividing by zero.
const normEpsilon = 1e-8

// Image ranks products against a single query embedding. A product matches
// when at least one of its image embeddings scores at or above threshold;
// matched images carry their clamped similarity. Results are sorted
// descending by best similarity (stable on ties) and truncated to topK.
func Image(query []float32, products []models.Product, threshold float64, topK int) []models.ProductMatch {
	matches := make([]models.ProductMatch, 0, len(products))
	for _, p := range products {
		imgs := matchedImages(query, p, threshold)
		if len(imgs) == 0 {
			continue
		}
		matches = append(matches, productMatch(p, imgs))
	}
	return rank(matches, topK)
}

// Video ranks products against a sequence of frame embeddings. Each frame is
// scored like an image query; matched images are merged across frames by
// image hash, keeping the highest similarity per hash.
func Video(frames [][]float32, products []models.Product, threshold float64, topK int) []models.ProductMatch {
	matches := make([]models.ProductMatch, 0, len(products))
	for _, p := range products {
		var merged []models.MatchedImage
		for _, frame := range frames {
			merged = mergeByBest(merged, matchedImages(frame, p, threshold))
		}
		if len(merged) == 0 {
			continue
		}
		matches = append(matches, productMatch(p, merged))
	}
	return rank(matches, topK)
}

// Text returns every candidate product as a match with an empty matched-image
// set. Keyword filtering happens upstream in the catalog query; similarity
// scoring does not apply, so input order is preserved up to topK.
func Text(products []models.Product, topK int) []models.ProductMatch {
	matches := make([]models.ProductMatch, 0, len(products))
	for _, p := range products {
		matches = append(matches, productMatch(p, []models.MatchedImage{}))
	}
	return rank(matches, topK)
}

// matchedImages scores every image of p against the query embedding and
// keeps those at or above threshold.
func matchedImages(query []float32, p models.Product, threshold float64) []models.MatchedImage {
	var kept []models.MatchedImage
	for i, emb := range p.Embeddings {
		if i >= len(p.ImageURLs) || i >= len(p.ImageHashes) {
			break
		}
		sim := clamp01(cosine(query, emb))
		if sim >= threshold {
			kept = append(kept, models.MatchedImage{
				ImageURL:   p.ImageURLs[i],
				ImageHash:  p.ImageHashes[i],
				Similarity: sim,
			})
		}
	}
	return kept
}

// mergeByBest merges two matched-image sets, keeping at most one entry per
// image hash at its maximum similarity. First occurrence order is preserved;
// the merge is idempotent.
func mergeByBest(existing, incoming []models.MatchedImage) []models.MatchedImage {
	if len(incoming) == 0 {
		return existing
	}
	index := make(map[string]int, len(existing))
	for i, m := range existing {
		index[m.ImageHash] = i
	}
	for _, m := range incoming {
		if i, ok := index[m.ImageHash]; ok {
			if m.Similarity > existing[i].Similarity {
				existing[i] = m
			}
			continue
		}
		index[m.ImageHash] = len(existing)
		existing = append(existing, m)
	}
	return existing
}

// rank sorts matches descending by best matched similarity, keeping input
// order among equal keys, and truncates to topK.
func rank(matches []models.ProductMatch, topK int) []models.ProductMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MaxSimilarity() > matches[j].MaxSimilarity()
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// cosine computes cosine similarity between two vectors in float64. Range is
// nominally [-1,1] but floating-point drift can push it past either bound;
// callers clamp.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + normEpsilon)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func productMatch(p models.Product, imgs []models.MatchedImage) models.ProductMatch {
	return models.ProductMatch{
		Name:          p.Name,
		Price:         p.Price,
		Description:   p.Description,
		Category:      p.Category,
		ImageURLs:     p.ImageURLs,
		MatchedImages: imgs,
	}
}
