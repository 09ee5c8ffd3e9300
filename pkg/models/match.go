package models

// MatchedImage is a single catalog image that scored at or above the
// similarity threshold against a query. Similarity is always in [0,1].
type MatchedImage struct {
	ImageURL   string  `json:"image_url"`
	ImageHash  string  `json:"image_hash"`
	Similarity float64 `json:"similarity"`
}

// ProductMatch is one catalog entry returned from a search, annotated with
// the images that matched. MatchedImages holds at most one entry per distinct
// image hash, kept at its maximum observed similarity. It is empty for
// text-only searches.
type ProductMatch struct {
	Name          string         `json:"name"`
	Price         float64        `json:"price"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	ImageURLs     []string       `json:"image_urls"`
	MatchedImages []MatchedImage `json:"matched_images"`
}

// MaxSimilarity returns the best similarity among the matched images, or 0
// when none matched. It is the ranking key for search results.
func (m *ProductMatch) MaxSimilarity() float64 {
	best := 0.0
	for _, img := range m.MatchedImages {
		if img.Similarity > best {
			best = img.Similarity
		}
	}
	return best
}

// SearchResult is the payload stored in the result cache and attached to a
// completed search job.
type SearchResult struct {
	Matches []ProductMatch `json:"matches"`
}
