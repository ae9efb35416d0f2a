// Package fingerprint derives stable identity and change-detection hashes
// for indexed content, per SPEC_FULL.md §4.1.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/Generation-One/fold/internal/foldcore"
)

// idLength is the number of leading hex characters of SHA-256(pathKey) kept
// as a file-sourced memory's id, per spec §3's Memory.id definition.
const idLength = 16

// PathKey joins a project slug and a repo-relative path into the canonical
// key whose hash becomes a file-sourced memory's id. The path is normalized
// to POSIX separators and a leading slash is trimmed. PathKey fails with
// foldcore.InvalidInput if the normalized path would escape the repo root.
func PathKey(projectSlug, repoRelativePath string) (string, error) {
	if projectSlug == "" {
		return "", foldcore.New(foldcore.InvalidInput, "project slug is required")
	}

	normalized := strings.ReplaceAll(repoRelativePath, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "/")
	cleaned := path.Clean(normalized)

	if cleaned == "." || cleaned == "" {
		return "", foldcore.Newf(foldcore.InvalidInput, "empty path for project %q", projectSlug)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", foldcore.Newf(foldcore.InvalidInput, "path %q escapes the repo root", repoRelativePath)
	}

	return projectSlug + "/" + cleaned, nil
}

// MemoryID returns the first 16 lowercase hex characters of SHA-256(pathKey).
// Re-fingerprinting the same pathKey always yields the same id, which is the
// invariant that makes file re-indexing idempotent (spec §3 invariant 1).
func MemoryID(pathKey string) string {
	sum := sha256.Sum256([]byte(pathKey))
	return hex.EncodeToString(sum[:])[:idLength]
}

// ContentHash returns the full hex SHA-256 of payload, after normalizing
// CRLF and bare-CR line endings to LF so that whitespace-only line-ending
// churn does not register as a content change.
func ContentHash(payload []byte) string {
	normalized := normalizeLineEndings(payload)
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:])
}

func normalizeLineEndings(b []byte) []byte {
	s := string(b)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
