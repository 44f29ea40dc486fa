package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return GenerateKeyWithParams(prefix, id)
}

// GenerateKeyWithParams joins a namespace and parameters into a key.
// Every part is trimmed and lower-cased so call-site formatting never
// splits logically identical requests.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, normalizePart(prefix))
	for _, param := range params {
		parts = append(parts, normalizePart(fmt.Sprintf("%v", param)))
	}
	return strings.Join(parts, ":")
}

func normalizePart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
