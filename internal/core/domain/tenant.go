package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const collectionHashLen = 12

// TenantCollection is a tenant's partition in the vector index.
type TenantCollection struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

// TenantSlug normalizes an opaque tenant id into a collection-safe token:
// lowercased, whitespace runs collapsed to "-", anything outside [a-z0-9_-] replaced by "_".
func TenantSlug(tenantID string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(tenantID) {
		if unicode.IsSpace(r) {
			pendingSep = true
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CollectionName derives the collection for a tenant id. The slug keeps names readable; the
// hash suffix of the trimmed id keeps ids that share a slug in separate collections.
func CollectionName(prefix, tenantID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(tenantID)))
	return prefix + TenantSlug(tenantID) + "-" + hex.EncodeToString(sum[:])[:collectionHashLen]
}
