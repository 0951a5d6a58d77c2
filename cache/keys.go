package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultNamespace prefixes keys when no namespace is configured.
const DefaultNamespace = "taskhub"

// keySeparator joins namespace and key parts.
const keySeparator = ":"

// emptyFiltersDigest is the digest token for a nil or empty filter set.
const emptyFiltersDigest = "all"

// KeyBuilder produces the cache keys and invalidation patterns used by the
// repositories. All parts are sanitized so user-supplied input can never alter
// key structure or glob syntax, and identical logical inputs always produce
// identical keys.
//
// Layout:
//
//	<ns>:user:<uid>:tasks:item:<taskID>
//	<ns>:user:<uid>:tasks:list:<filterDigest>
//	<ns>:user:<uid>:tasks:stats
//	<ns>:user:<uid>:categories:item:<categoryID>
//	<ns>:user:<uid>:categories:list
//	<ns>:users:item:<uid>
//
// Item keys live under the same prefix as the pattern that invalidates them,
// so one scan of <ns>:user:<uid>:tasks:* covers items, lists, and stats.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a KeyBuilder for the given namespace, falling back to
// DefaultNamespace when empty.
func NewKeyBuilder(namespace string) *KeyBuilder {
	ns := sanitizePart(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	return &KeyBuilder{namespace: ns}
}

// Namespace returns the sanitized namespace prefix.
func (b *KeyBuilder) Namespace() string {
	return b.namespace
}

// Key joins the namespace and parts with ":". Each part is sanitized; empty
// parts are dropped.
func (b *KeyBuilder) Key(parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, b.namespace)
	for _, p := range parts {
		if s := sanitizePart(p); s != "" {
			elems = append(elems, s)
		}
	}
	return strings.Join(elems, keySeparator)
}

// Pattern returns a glob matching every key under the given parts.
func (b *KeyBuilder) Pattern(parts ...string) string {
	return b.Key(parts...) + keySeparator + "*"
}

// TaskKey returns the item key for one task.
func (b *KeyBuilder) TaskKey(userID, taskID string) string {
	return b.Key("user", userID, "tasks", "item", taskID)
}

// TaskListKey returns the list key for one user's filtered task listing.
func (b *KeyBuilder) TaskListKey(userID string, filters Filters) string {
	return b.Key("user", userID, "tasks", "list", filters.Digest())
}

// TaskStatsKey returns the aggregate statistics key for one user.
func (b *KeyBuilder) TaskStatsKey(userID string) string {
	return b.Key("user", userID, "tasks", "stats")
}

// TasksPattern matches every task-derived key for one user.
func (b *KeyBuilder) TasksPattern(userID string) string {
	return b.Pattern("user", userID, "tasks")
}

// CategoryKey returns the item key for one category.
func (b *KeyBuilder) CategoryKey(userID, categoryID string) string {
	return b.Key("user", userID, "categories", "item", categoryID)
}

// CategoryListKey returns the category listing key for one user.
func (b *KeyBuilder) CategoryListKey(userID string) string {
	return b.Key("user", userID, "categories", "list")
}

// CategoriesPattern matches every category-derived key for one user.
func (b *KeyBuilder) CategoriesPattern(userID string) string {
	return b.Pattern("user", userID, "categories")
}

// UserKey returns the profile key for one user.
func (b *KeyBuilder) UserKey(userID string) string {
	return b.Key("users", "item", userID)
}

// UserScopePattern matches every per-user key (tasks and categories alike).
// The profile key is namespaced separately and must be removed explicitly.
func (b *KeyBuilder) UserScopePattern(userID string) string {
	return b.Pattern("user", userID)
}

// Filters is an unordered set of listing filters. Two Filters with the same
// entries produce the same digest regardless of insertion order, so logically
// identical list requests share one cache entry. Nil-valued entries are
// ignored.
type Filters map[string]any

// Digest reduces the filter set to a fixed-width hex token: entries are
// serialized as k=v pairs in sorted key order, joined with "&", and hashed
// with xxhash. Empty or nil filters digest to "all".
//
// A set whose entries are all nil digests the same as the empty set, so
// {"completed": nil} and {} share one cache bucket. Both mean "unfiltered",
// so the shared entry is correct, but callers that need distinct buckets
// must not encode absence as an explicit nil value.
func (f Filters) Digest() string {
	if len(f) == 0 {
		return emptyFiltersDigest
	}

	keys := make([]string, 0, len(f))
	for k, v := range f {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return emptyFiltersDigest
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(canonicalValue(f[k]))
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}

// canonicalValue renders a filter value deterministically: integers without
// sign wobble, floats in shortest form, times in UTC RFC3339.
func canonicalValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sanitizePart replaces every character outside [A-Za-z0-9_-] with "_" so a
// part can never introduce separators or glob metacharacters.
func sanitizePart(part string) string {
	if part == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(part))
	for _, r := range part {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
