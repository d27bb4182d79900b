package sqlite

import (
	"context"
	"database/sql"

	"github.com/mkrol/marginalia"
)

// Compile-time interface verification.
var _ marginalia.TagIndex = (*TagIndex)(nil)

// TagIndex implements marginalia.TagIndex using SQLite.
//
// Every logical tag mutation touches two rows: the tag's bucket in
// tag_to_ids and the annotation's set in id_to_tags. SQLite is driven
// here as a plain key-value store, so instead of a multi-key
// transaction each mutation uses an explicit two-write protocol: the
// tag side is written first and restored from its prior value if the
// id side fails. Bidirectional consistency therefore holds at every
// quiescent point, even after a mid-operation failure.
type TagIndex struct {
	db *DB
}

// NewTagIndex creates a new TagIndex.
func NewTagIndex(db *DB) *TagIndex {
	return &TagIndex{db: db}
}

// AllTags returns every known tag, lexicographically sorted.
func (s *TagIndex) AllTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM tag_to_ids ORDER BY tag")
	if err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
	}
	return tags, nil
}

// TagCounts returns every known tag with its bucket size, sorted by tag.
func (s *TagIndex) TagCounts(ctx context.Context) ([]marginalia.TagCount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag, ids FROM tag_to_ids ORDER BY tag")
	if err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
	}
	defer rows.Close()

	var counts []marginalia.TagCount
	for rows.Next() {
		var tag string
		var data []byte
		if err := rows.Scan(&tag, &data); err != nil {
			return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
		}
		ids, err := decodeSet(data)
		if err != nil {
			return nil, marginalia.Errorf(marginalia.ESTORAGE, "corrupt bucket for tag %q: %v", tag, err)
		}
		counts = append(counts, marginalia.TagCount{Tag: tag, Count: len(ids)})
	}
	if err := rows.Err(); err != nil {
		return nil, marginalia.Errorf(marginalia.ESTORAGE, "failed to read tags: %v", err)
	}
	return counts, nil
}

// TagsOf returns the tags of an annotation, sorted. Unknown IDs yield
// an empty result.
func (s *TagIndex) TagsOf(ctx context.Context, id string) ([]string, error) {
	tags, _, err := s.readSet(ctx, "SELECT tags FROM id_to_tags WHERE id = ?", id)
	return tags, err
}

// AnnotationsWithTag returns the IDs in a tag's bucket, sorted.
// Unknown tags yield an empty result.
func (s *TagIndex) AnnotationsWithTag(ctx context.Context, tag string) ([]string, error) {
	ids, _, err := s.readSet(ctx, "SELECT ids FROM tag_to_ids WHERE tag = ?", tag)
	return ids, err
}

// AddTag inserts id into the tag's bucket and the tag into the
// annotation's set. Idempotent: adding a tag already present succeeds
// without touching the store.
func (s *TagIndex) AddTag(ctx context.Context, id, tag string) error {
	if id == "" {
		return marginalia.Errorf(marginalia.EINVALID, "annotation ID required")
	}
	if tag == "" {
		return marginalia.Errorf(marginalia.EINVALID, "tag must not be empty")
	}

	ids, bucketExists, err := s.readSet(ctx, "SELECT ids FROM tag_to_ids WHERE tag = ?", tag)
	if err != nil {
		return err
	}
	tags, _, err := s.readSet(ctx, "SELECT tags FROM id_to_tags WHERE id = ?", id)
	if err != nil {
		return err
	}
	if containsString(ids, id) && containsString(tags, tag) {
		return nil
	}

	// First write: the tag-side bucket.
	if err := s.writeTagBucket(ctx, tag, append(ids, id)); err != nil {
		return err
	}

	// Second write: the id-side set. Roll the bucket back on failure
	// so the two directions never disagree.
	if err := s.writeIDSet(ctx, id, append(tags, tag)); err != nil {
		if bucketExists {
			_ = s.writeTagBucket(ctx, tag, ids)
		} else {
			_, _ = s.db.ExecContext(ctx, "DELETE FROM tag_to_ids WHERE tag = ?", tag)
		}
		return err
	}
	return nil
}

// RemoveTag removes id from the tag's bucket and the tag from the
// annotation's set. Idempotent: removing a tag not present succeeds.
// Emptied buckets and sets are deleted, never left dangling.
func (s *TagIndex) RemoveTag(ctx context.Context, id, tag string) error {
	ids, bucketExists, err := s.readSet(ctx, "SELECT ids FROM tag_to_ids WHERE tag = ?", tag)
	if err != nil {
		return err
	}
	tags, _, err := s.readSet(ctx, "SELECT tags FROM id_to_tags WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !containsString(ids, id) && !containsString(tags, tag) {
		return nil
	}

	newIDs := removeString(ids, id)
	if err := s.deleteOrWriteTagBucket(ctx, tag, newIDs); err != nil {
		return err
	}

	newTags := removeString(tags, tag)
	if err := s.deleteOrWriteIDSet(ctx, id, newTags); err != nil {
		if bucketExists {
			_ = s.writeTagBucket(ctx, tag, ids)
		}
		return err
	}
	return nil
}

// RemoveAnnotation removes id from every tag bucket it belongs to,
// drops its id_to_tags entry, and deletes the canonical record.
// Returns ENOTFOUND if the annotation does not exist.
func (s *TagIndex) RemoveAnnotation(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM annotations WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return marginalia.Errorf(marginalia.ENOTFOUND, "annotation %q not found", id)
	}
	if err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to read annotation %q: %v", id, err)
	}

	// Cascade tag by tag through the pairwise protocol so a failure
	// partway leaves the index bidirectionally consistent.
	tags, _, err := s.readSet(ctx, "SELECT tags FROM id_to_tags WHERE id = ?", id)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if err := s.RemoveTag(ctx, id, tag); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM id_to_tags WHERE id = ?", id); err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to delete tag entry for %q: %v", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM annotations WHERE id = ?", id); err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to delete annotation %q: %v", id, err)
	}
	return nil
}

// readSet reads one serialized set row. Missing keys are not an
// error; they read as an empty set with exists=false.
func (s *TagIndex) readSet(ctx context.Context, query, key string) ([]string, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, marginalia.Errorf(marginalia.ESTORAGE, "failed to read entry %q: %v", key, err)
	}
	set, err := decodeSet(data)
	if err != nil {
		return nil, false, marginalia.Errorf(marginalia.ESTORAGE, "corrupt entry %q: %v", key, err)
	}
	return set, true, nil
}

func (s *TagIndex) writeTagBucket(ctx context.Context, tag string, ids []string) error {
	data, err := encodeSet(ids)
	if err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to encode bucket for tag %q: %v", tag, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tag_to_ids (tag, ids) VALUES (?, ?)
		ON CONFLICT(tag) DO UPDATE SET ids = excluded.ids
	`, tag, data)
	if err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to write bucket for tag %q: %v", tag, err)
	}
	return nil
}

func (s *TagIndex) writeIDSet(ctx context.Context, id string, tags []string) error {
	data, err := encodeSet(tags)
	if err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to encode tags for %q: %v", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO id_to_tags (id, tags) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET tags = excluded.tags
	`, id, data)
	if err != nil {
		return marginalia.Errorf(marginalia.ESTORAGE, "failed to write tags for %q: %v", id, err)
	}
	return nil
}

// deleteOrWriteTagBucket deletes the bucket when it empties out, so
// AllTags never reports a tag with no annotations.
func (s *TagIndex) deleteOrWriteTagBucket(ctx context.Context, tag string, ids []string) error {
	if len(ids) == 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM tag_to_ids WHERE tag = ?", tag); err != nil {
			return marginalia.Errorf(marginalia.ESTORAGE, "failed to delete bucket for tag %q: %v", tag, err)
		}
		return nil
	}
	return s.writeTagBucket(ctx, tag, ids)
}

func (s *TagIndex) deleteOrWriteIDSet(ctx context.Context, id string, tags []string) error {
	if len(tags) == 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM id_to_tags WHERE id = ?", id); err != nil {
			return marginalia.Errorf(marginalia.ESTORAGE, "failed to delete tags for %q: %v", id, err)
		}
		return nil
	}
	return s.writeIDSet(ctx, id, tags)
}
