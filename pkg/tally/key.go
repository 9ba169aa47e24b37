package tally

import (
	"sort"
	"strconv"
	"strings"
)

// ScopeKey identifies a scope, or a metric inside a Snapshot, by its prefix
// (or qualified name) and tag set. Keys are comparable and usable as map keys;
// two keys are equal iff the prefix and the tag set match exactly, independent
// of tag insertion order.
type ScopeKey struct {
	prefix string
	tags   string
}

// NewScopeKey builds the key for prefix and tags.
func NewScopeKey(prefix string, tags map[string]string) ScopeKey {
	return ScopeKey{prefix: prefix, tags: encodeTags(tags)}
}

// Prefix returns the prefix or qualified metric name of the key.
func (k ScopeKey) Prefix() string {
	return k.prefix
}

// String renders the key as prefix+k1=v1,k2=v2 with tags sorted by key.
func (k ScopeKey) String() string {
	if k.tags == "" {
		return k.prefix
	}
	var b strings.Builder
	b.WriteString(k.prefix)
	b.WriteByte('+')
	rest := k.tags
	first := true
	for rest != "" {
		var key, value string
		key, rest = decodeField(rest)
		value, rest = decodeField(rest)
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
	}
	return b.String()
}

// encodeTags produces a canonical form of tags: sorted by key, each key and
// value length-prefixed so that no tag content can collide with a separator.
func encodeTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		encodeField(&b, k)
		encodeField(&b, tags[k])
	}
	return b.String()
}

func encodeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func decodeField(s string) (field, rest string) {
	i := strings.IndexByte(s, ':')
	n, _ := strconv.Atoi(s[:i])
	return s[i+1 : i+1+n], s[i+1+n:]
}

// emptyTags is shared by every untagged scope. It is never mutated.
var emptyTags = map[string]string{}

// mergeTags returns a new map holding base overlaid with override; keys in
// override win.
func mergeTags(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return emptyTags
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// copyTags always allocates, so the result is safe to hand to callers.
func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
