package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mkrol/marginalia"
)

// Compile-time interface verification.
var _ marginalia.AnnotationStore = (*AnnotationStore)(nil)

// AnnotationStore implements marginalia.AnnotationStore using SQLite.
// Records are stored as JSON blobs keyed by the remote annotation ID;
// the tag index, not the stored record, is the source of truth for
// tags, so every read replaces the record's tag list with the
// index entry.
type AnnotationStore struct {
	db  *DB
	idx *TagIndex
}

// NewAnnotationStore creates a new AnnotationStore.
func NewAnnotationStore(db *DB) *AnnotationStore {
	return &AnnotationStore{db: db, idx: NewTagIndex(db)}
}

// hashRecord computes an xxHash over the remote-owned fields of a
// record, used to skip rewrites of unchanged annotations during sync.
func hashRecord(a *marginalia.Annotation) string {
	h := xxhash.New()
	_, _ = h.WriteString(a.URI)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(a.Text)
	for _, q := range a.Quotes {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(q)
	}
	for _, t := range a.Tags {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(t)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// UpsertAnnotation inserts or updates a record. New records seed the
// tag index from their remote tags; updates never touch the index.
func (s *AnnotationStore) UpsertAnnotation(ctx context.Context, a *marginalia.Annotation) (marginalia.UpsertResult, error) {
	if err := a.Validate(); err != nil {
		return marginalia.UpsertUnchanged, err
	}

	hash := hashRecord(a)
	record, err := json.Marshal(a)
	if err != nil {
		return marginalia.UpsertUnchanged, marginalia.Errorf(marginalia.ESTORAGE, "failed to encode annotation %q: %v", a.ID, err)
	}
	fetchedAt := time.Now().UTC().Format(time.RFC3339)

	var existingHash string
	err = s.db.QueryRowContext(ctx, "SELECT content_hash FROM annotations WHERE id = ?", a.ID).Scan(&existingHash)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO annotations (id, uri, record, content_hash, fetched_at)
			VALUES (?, ?, ?, ?, ?)
		`, a.ID, a.URI, record, hash, fetchedAt)
		if err != nil {
			return marginalia.UpsertUnchanged, marginalia.Errorf(marginalia.ESTORAGE, "failed to insert annotation %q: %v", a.ID, err)
		}
		// Remote tags seed the index only on first sight of the ID;
		// after that the local index is authoritative.
		for _, tag := range a.Tags {
			if err := s.idx.AddTag(ctx, a.ID, tag); err != nil {
				return marginalia.UpsertCreated, err
			}
		}
		return marginalia.UpsertCreated, nil

	case err != nil:
		return marginalia.UpsertUnchanged, marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotation %q: %v", a.ID, err)

	case existingHash == hash:
		return marginalia.UpsertUnchanged, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE annotations SET uri = ?, record = ?, content_hash = ?, fetched_at = ? WHERE id = ?
	`, a.URI, record, hash, fetchedAt, a.ID)
	if err != nil {
		return marginalia.UpsertUnchanged, marginalia.Errorf(marginalia.ESTORAGE, "failed to update annotation %q: %v", a.ID, err)
	}
	return marginalia.UpsertUpdated, nil
}

// FindAnnotationByID retrieves an annotation by ID with its tags set
// from the tag index. Returns ENOTFOUND when absent.
func (s *AnnotationStore) FindAnnotationByID(ctx context.Context, id string) (*marginalia.Annotation, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, "SELECT record FROM annotations WHERE id = ?", id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, marginalia.Errorf(marginalia.ENOTFOUND, "annotation %q not found", id)
	}
	if err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotation %q: %v", id, err)
	}
	return s.decorate(ctx, record)
}

// FindAnnotations retrieves annotations matching the filter, sorted
// by ID for determinism.
func (s *AnnotationStore) FindAnnotations(ctx context.Context, filter marginalia.AnnotationFilter) ([]*marginalia.Annotation, error) {
	if filter.Tag != nil {
		return s.findByTag(ctx, *filter.Tag, filter)
	}

	var query strings.Builder
	var args []any
	query.WriteString("SELECT record FROM annotations WHERE 1=1")
	if filter.URI != nil {
		query.WriteString(" AND uri LIKE ?")
		args = append(args, "%"+*filter.URI+"%")
	}
	query.WriteString(" ORDER BY id")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotations: %v", err)
	}
	defer rows.Close()

	var anns []*marginalia.Annotation
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotations: %v", err)
		}
		a, err := s.decorate(ctx, record)
		if err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotations: %v", err)
	}
	return anns, nil
}

// CountAnnotations returns the number of stored annotations.
func (s *AnnotationStore) CountAnnotations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM annotations").Scan(&n); err != nil {
		return 0, marginalia.Errorf(marginalia.ESTORAGE, "failed to count annotations: %v", err)
	}
	return n, nil
}

// findByTag resolves the tag's bucket first, then fetches each record.
func (s *AnnotationStore) findByTag(ctx context.Context, tag string, filter marginalia.AnnotationFilter) ([]*marginalia.Annotation, error) {
	ids, err := s.idx.AnnotationsWithTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	var anns []*marginalia.Annotation
	for _, id := range ids {
		if filter.Limit > 0 && len(anns) >= filter.Limit {
			break
		}
		a, err := s.FindAnnotationByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if filter.URI != nil && !strings.Contains(a.URI, *filter.URI) {
			continue
		}
		anns = append(anns, a)
	}
	return anns, nil
}

// decorate unmarshals a stored record and overlays the index tags.
func (s *AnnotationStore) decorate(ctx context.Context, record []byte) (*marginalia.Annotation, error) {
	var a marginalia.Annotation
	if err := json.Unmarshal(record, &a); err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "corrupt annotation record: %v", err)
	}
	tags, err := s.idx.TagsOf(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Tags = tags
	return &a, nil
}
