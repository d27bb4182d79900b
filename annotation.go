package marginalia

import (
	"context"
	"time"
)

// Annotation represents a single web-annotation record: a highlighted
// quote (or quotes) on a page, an optional note, the page URI, and a
// set of tags. Records are owned by the remote annotation service and
// referenced locally by their service-assigned ID.
type Annotation struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	Text      string    `json:"text"`
	Quotes    []string  `json:"quotes"`
	Tags      []string  `json:"tags"`
	Group     string    `json:"group"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate returns an error if the annotation contains invalid fields.
func (a *Annotation) Validate() error {
	if a.ID == "" {
		return Errorf(EINVALID, "annotation ID required")
	}
	if a.URI == "" {
		return Errorf(EINVALID, "annotation URI required")
	}
	return nil
}

// UpsertResult indicates what UpsertAnnotation did with a record.
type UpsertResult int

// UpsertResult values.
const (
	UpsertCreated UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

// AnnotationStore is the canonical local store of annotation records.
// Records enter the store through UpsertAnnotation during sync and
// leave it only through TagIndex.RemoveAnnotation, which cascades
// through the tag index.
type AnnotationStore interface {
	// UpsertAnnotation inserts a new record or updates an existing
	// one. On first insert the record's remote tags seed the tag
	// index; later updates never touch the index. Returns
	// UpsertUnchanged when the incoming record is identical to the
	// stored one.
	UpsertAnnotation(ctx context.Context, a *Annotation) (UpsertResult, error)

	// FindAnnotationByID retrieves an annotation by ID with its tags
	// set from the tag index. Returns ENOTFOUND if the annotation
	// does not exist.
	FindAnnotationByID(ctx context.Context, id string) (*Annotation, error)

	// FindAnnotations retrieves annotations matching the filter, tags
	// set from the tag index. An unknown tag yields an empty result,
	// not an error.
	FindAnnotations(ctx context.Context, filter AnnotationFilter) ([]*Annotation, error)

	// CountAnnotations returns the number of stored annotations.
	CountAnnotations(ctx context.Context) (int, error)
}

// AnnotationFilter represents a filter for FindAnnotations.
type AnnotationFilter struct {
	Tag *string `json:"tag"`
	URI *string `json:"uri"` // substring match

	Limit int `json:"limit"`
}

// Source supplies annotation records from the remote service and
// accepts tag updates and deletions pushed back to it.
type Source interface {
	// FetchSince returns all annotations updated at or after the
	// given time. A zero time fetches everything.
	FetchSince(ctx context.Context, since time.Time) ([]*Annotation, error)

	// UpdateTags replaces the tag list of a remote annotation.
	UpdateTags(ctx context.Context, id string, tags []string) error

	// DeleteAnnotation deletes a remote annotation.
	DeleteAnnotation(ctx context.Context, id string) error
}

// Renderer turns an annotation into a markdown string for preview
// display. A render failure aborts the whole search operation.
type Renderer interface {
	Render(a *Annotation) (string, error)
}
