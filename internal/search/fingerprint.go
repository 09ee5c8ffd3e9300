package search

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the content-addressed cache identity of a search
// request. It hashes the video bytes, then the image bytes, then the query
// text, so two requests with identical content always share a fingerprint
// regardless of upload filenames or submission time.
func Fingerprint(video, image []byte, query string) string {
	h := sha256.New()
	h.Write(video)
	h.Write(image)
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes returns the hex SHA-256 of a single blob. Used for image
// content hashes in the catalog.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
