package foldcore

import (
	"regexp"
	"strings"
)

// collectionPrefix namespaces every project's vector collection so the
// vector store's flat collection namespace never collides with an
// unrelated tenant, per spec §4.6 ("<prefix><project_slug>").
const collectionPrefix = "fold_"

var slugSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// CollectionName derives the per-project vector store collection name from
// a project slug. The result is always lowercase and matches the
// alphanumeric/underscore charset both backend adapters accept.
func CollectionName(projectSlug string) string {
	sanitized := slugSanitizer.ReplaceAllString(strings.ToLower(projectSlug), "_")
	return collectionPrefix + sanitized
}
