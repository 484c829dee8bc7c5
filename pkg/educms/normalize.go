package educms

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeExt lowercases a file extension and ensures a leading dot.
// Anything other than ASCII letters and digits is dropped.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}

// NewMediaPath returns a fresh media path of the form yyyy/mm/<uuid><ext>.
func NewMediaPath(ext string) string {
	return time.Now().UTC().Format("2006/01") + "/" + uuid.New().String() + NormalizeExt(ext)
}

// CleanMediaPath canonicalizes a stored media path and rejects paths that
// are absolute or escape the store root.
func CleanMediaPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidMediaPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidMediaPath
	}
	return cleaned, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
