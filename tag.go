package marginalia

import (
	"context"
	"strings"
)

// TagIndex is the persistent bidirectional mapping between tags and
// annotation IDs. Every mutation keeps the two directions consistent:
// tag T is in TagsOf(id) exactly when id is in AnnotationsWithTag(T),
// even when a write fails partway through an operation.
//
// The index is local and single-process. Concurrent access from
// multiple processes is unsupported.
type TagIndex interface {
	// AllTags returns every known tag, lexicographically sorted.
	AllTags(ctx context.Context) ([]string, error)

	// TagCounts returns every known tag with the size of its bucket,
	// lexicographically sorted by tag.
	TagCounts(ctx context.Context) ([]TagCount, error)

	// TagsOf returns the tags of an annotation, sorted. An unknown ID
	// yields an empty result, not an error.
	TagsOf(ctx context.Context, id string) ([]string, error)

	// AnnotationsWithTag returns the IDs tagged with tag, sorted. An
	// unknown tag yields an empty result, not an error.
	AnnotationsWithTag(ctx context.Context, tag string) ([]string, error)

	// AddTag tags an annotation. Adding a tag already present is a
	// no-op that still succeeds.
	AddTag(ctx context.Context, id, tag string) error

	// RemoveTag untags an annotation. Removing a tag not present is a
	// no-op that still succeeds. Removing the last ID from a tag's
	// bucket deletes the bucket.
	RemoveTag(ctx context.Context, id, tag string) error

	// RemoveAnnotation removes an annotation from every tag bucket it
	// belongs to, drops its tag entry, and deletes the canonical
	// record. Returns ENOTFOUND if the annotation does not exist.
	RemoveAnnotation(ctx context.Context, id string) error
}

// TagCount pairs a tag with the number of annotations carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ParseTagInput turns free-typed tag input into a tag list: split on
// commas, trim whitespace, drop empties, and silently de-duplicate
// keeping first-occurrence order. Used by the tag picker's free-text
// fallback when the user accepts without selecting any existing tag.
func ParseTagInput(input string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, part := range strings.Split(input, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
