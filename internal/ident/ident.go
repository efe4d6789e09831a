// Package ident derives stable identifiers for articles and indexed passages.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const articlePrefix = "article:"

// pointNamespace scopes passage point IDs so they never collide with other UUIDv5 users.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://principia.hyperjump.dev/passages"))

// ArticleID returns a stable article ID for a title. Titles are compared after trimming.
func ArticleID(title string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(title)))
	return articlePrefix + hex.EncodeToString(hash[:])
}

// PointID returns the vector index point ID for a passage. Re-ingesting a title
// yields the same IDs, so points are replaced rather than duplicated.
func PointID(title string, chunkIndex int) string {
	name := strings.TrimSpace(title) + "#" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// ContentHash fingerprints article content to detect changes between ingestions.
func ContentHash(title, url, content string) string {
	h := sha256.New()
	for _, part := range []string{title, url, content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SourcePath normalizes a file path used as an article source.
func SourcePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}
