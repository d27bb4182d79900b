package sqlite_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mkrol/marginalia"
	"github.com/mkrol/marginalia/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestAnnotation stores a canonical record with the given
// remote tags, seeding the index through the normal upsert path.
func createTestAnnotation(t *testing.T, db *sqlite.DB, id string, tags ...string) {
	t.Helper()
	store := sqlite.NewAnnotationStore(db)
	a := &marginalia.Annotation{
		ID:   id,
		URI:  fmt.Sprintf("https://example.com/%s", id),
		Text: "note for " + id,
		Tags: tags,
	}
	res, err := store.UpsertAnnotation(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, marginalia.UpsertCreated, res)
}

// requireConsistent asserts the bidirectional consistency invariant:
// tag is in TagsOf(id) exactly when id is in AnnotationsWithTag(tag).
func requireConsistent(t *testing.T, idx *sqlite.TagIndex, ids, tags []string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		idTags, err := idx.TagsOf(ctx, id)
		require.NoError(t, err)
		for _, tag := range tags {
			bucket, err := idx.AnnotationsWithTag(ctx, tag)
			require.NoError(t, err)
			forward := containsStr(idTags, tag)
			backward := containsStr(bucket, id)
			require.Equal(t, forward, backward,
				"inconsistent index: tag %q in TagsOf(%q)=%v but %q in bucket(%q)=%v",
				tag, id, forward, id, tag, backward)
		}
	}
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func TestTagIndex_AddTag(t *testing.T) {
	t.Parallel()

	t.Run("adds tag in both directions", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1")

		require.NoError(t, idx.AddTag(ctx, "a1", "research"))

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{"research"}, tags)

		ids, err := idx.AnnotationsWithTag(ctx, "research")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids)
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1")

		require.NoError(t, idx.AddTag(ctx, "a1", "research"))
		require.NoError(t, idx.AddTag(ctx, "a1", "research"))

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{"research"}, tags)

		ids, err := idx.AnnotationsWithTag(ctx, "research")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids)
	})

	t.Run("rejects empty tag", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)

		err := idx.AddTag(context.Background(), "a1", "")
		require.Error(t, err)
		assert.Equal(t, marginalia.EINVALID, marginalia.ErrorCode(err))
	})

	t.Run("a tag may be shared by many annotations", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1")
		createTestAnnotation(t, db, "a2")

		require.NoError(t, idx.AddTag(ctx, "a1", "shared"))
		require.NoError(t, idx.AddTag(ctx, "a2", "shared"))

		ids, err := idx.AnnotationsWithTag(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids)
	})
}

func TestTagIndex_RemoveTag(t *testing.T) {
	t.Parallel()

	t.Run("removes tag in both directions", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "research", "golang")

		require.NoError(t, idx.RemoveTag(ctx, "a1", "research"))

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{"golang"}, tags)

		ids, err := idx.AnnotationsWithTag(ctx, "research")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("removing an absent tag is a successful no-op", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "research")

		require.NoError(t, idx.RemoveTag(ctx, "a1", "nope"))
		require.NoError(t, idx.RemoveTag(ctx, "ghost", "research"))

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{"research"}, tags)
	})

	t.Run("deletes an emptied bucket", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "solo")

		require.NoError(t, idx.RemoveTag(ctx, "a1", "solo"))

		all, err := idx.AllTags(ctx)
		require.NoError(t, err)
		assert.NotContains(t, all, "solo")
	})

	t.Run("keeps bucket while other annotations remain", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "shared")
		createTestAnnotation(t, db, "a2", "shared")

		require.NoError(t, idx.RemoveTag(ctx, "a1", "shared"))

		ids, err := idx.AnnotationsWithTag(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, ids)
	})
}

func TestTagIndex_RemoveAnnotation(t *testing.T) {
	t.Parallel()

	t.Run("cascades through every bucket", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		store := sqlite.NewAnnotationStore(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "t1", "t2")
		createTestAnnotation(t, db, "a2", "t1")

		require.NoError(t, idx.RemoveAnnotation(ctx, "a1"))

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Empty(t, tags)

		ids, err := idx.AnnotationsWithTag(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, ids, "a1 should be gone from every bucket it belonged to")

		all, err := idx.AllTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, all, "t2 bucket emptied by the cascade should be gone")

		_, err = store.FindAnnotationByID(ctx, "a1")
		assert.Equal(t, marginalia.ENOTFOUND, marginalia.ErrorCode(err))
	})

	t.Run("returns ENOTFOUND for unknown annotation", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)

		err := idx.RemoveAnnotation(context.Background(), "ghost")
		require.Error(t, err)
		assert.Equal(t, marginalia.ENOTFOUND, marginalia.ErrorCode(err))
	})

	t.Run("untagged annotation can be removed", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		store := sqlite.NewAnnotationStore(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1")

		require.NoError(t, idx.RemoveAnnotation(ctx, "a1"))

		_, err := store.FindAnnotationByID(ctx, "a1")
		assert.Equal(t, marginalia.ENOTFOUND, marginalia.ErrorCode(err))
	})
}

func TestTagIndex_AllTags(t *testing.T) {
	t.Parallel()

	t.Run("lexicographically sorted", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "zebra", "alpha", "mango")

		all, err := idx.AllTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "mango", "zebra"}, all)
	})

	t.Run("empty index has no tags", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)

		all, err := idx.AllTags(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestTagIndex_TagCounts(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	idx := sqlite.NewTagIndex(db)
	ctx := context.Background()
	createTestAnnotation(t, db, "a1", "shared", "solo")
	createTestAnnotation(t, db, "a2", "shared")

	counts, err := idx.TagCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []marginalia.TagCount{
		{Tag: "shared", Count: 2},
		{Tag: "solo", Count: 1},
	}, counts)
}

func TestTagIndex_BidirectionalConsistency(t *testing.T) {
	t.Parallel()

	// Drive the index through a mixed mutation sequence and verify
	// the invariant at every quiescent point.
	db := setupTestDB(t)
	idx := sqlite.NewTagIndex(db)
	ctx := context.Background()

	ids := []string{"a1", "a2", "a3"}
	tags := []string{"t1", "t2", "t3"}
	for _, id := range ids {
		createTestAnnotation(t, db, id)
	}

	steps := []func() error{
		func() error { return idx.AddTag(ctx, "a1", "t1") },
		func() error { return idx.AddTag(ctx, "a1", "t2") },
		func() error { return idx.AddTag(ctx, "a2", "t1") },
		func() error { return idx.AddTag(ctx, "a2", "t1") }, // duplicate
		func() error { return idx.AddTag(ctx, "a3", "t3") },
		func() error { return idx.RemoveTag(ctx, "a1", "t1") },
		func() error { return idx.RemoveTag(ctx, "a1", "t3") }, // not present
		func() error { return idx.RemoveAnnotation(ctx, "a2") },
		func() error { return idx.AddTag(ctx, "a3", "t1") },
		func() error { return idx.RemoveAnnotation(ctx, "a3") },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		requireConsistent(t, idx, ids, tags)
	}
}

func TestTagIndex_Scenario(t *testing.T) {
	t.Parallel()

	// End to end: tag twice, verify, remove the annotation, verify
	// the index is empty again.
	db := setupTestDB(t)
	idx := sqlite.NewTagIndex(db)
	ctx := context.Background()
	createTestAnnotation(t, db, "a1")

	require.NoError(t, idx.AddTag(ctx, "a1", "research"))
	require.NoError(t, idx.AddTag(ctx, "a1", "research"))

	tags, err := idx.TagsOf(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"research"}, tags)

	ids, err := idx.AnnotationsWithTag(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids)

	require.NoError(t, idx.RemoveAnnotation(ctx, "a1"))

	tags, err = idx.TagsOf(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, tags)

	all, err := idx.AllTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// failWritesTo makes every statement touching the given table fail,
// leaving all other writes working so rollback paths can run.
func failWritesTo(db *sqlite.DB, table string) {
	db.SetExecHook(func(query string) error {
		if strings.Contains(query, table) {
			return fmt.Errorf("injected write failure on %s", table)
		}
		return nil
	})
}

func TestTagIndex_WriteFailureRollback(t *testing.T) {
	t.Parallel()

	t.Run("failed id-side write during AddTag restores the bucket", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "t1")
		createTestAnnotation(t, db, "a2")

		failWritesTo(db, "id_to_tags")
		err := idx.AddTag(ctx, "a2", "t1")
		db.SetExecHook(nil)

		require.Error(t, err)
		assert.Equal(t, marginalia.ESTORAGE, marginalia.ErrorCode(err))

		ids, err := idx.AnnotationsWithTag(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids)

		tags, err := idx.TagsOf(ctx, "a2")
		require.NoError(t, err)
		assert.Empty(t, tags)

		requireConsistent(t, idx, []string{"a1", "a2"}, []string{"t1"})
	})

	t.Run("failed id-side write during AddTag deletes a bucket it created", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1")

		failWritesTo(db, "id_to_tags")
		err := idx.AddTag(ctx, "a1", "t9")
		db.SetExecHook(nil)

		require.Error(t, err)

		all, err := idx.AllTags(ctx)
		require.NoError(t, err)
		assert.NotContains(t, all, "t9")

		requireConsistent(t, idx, []string{"a1"}, []string{"t9"})
	})

	t.Run("failed id-side write during RemoveTag restores the full bucket", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "t1")
		createTestAnnotation(t, db, "a2", "t1")

		failWritesTo(db, "id_to_tags")
		err := idx.RemoveTag(ctx, "a1", "t1")
		db.SetExecHook(nil)

		require.Error(t, err)
		assert.Equal(t, marginalia.ESTORAGE, marginalia.ErrorCode(err))

		// The restored bucket must contain every id it held before
		// the operation, including the one whose removal failed.
		ids, err := idx.AnnotationsWithTag(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids)

		tags, err := idx.TagsOf(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, tags)

		requireConsistent(t, idx, []string{"a1", "a2"}, []string{"t1"})
	})

	t.Run("cascade stops consistent when a removal fails partway", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		idx := sqlite.NewTagIndex(db)
		ctx := context.Background()
		createTestAnnotation(t, db, "a1", "t1", "t2")
		createTestAnnotation(t, db, "a2", "t1")

		failWritesTo(db, "id_to_tags")
		err := idx.RemoveAnnotation(ctx, "a1")
		db.SetExecHook(nil)

		require.Error(t, err)
		requireConsistent(t, idx, []string{"a1", "a2"}, []string{"t1", "t2"})

		ids, err := idx.AnnotationsWithTag(ctx, "t1")
		require.NoError(t, err)
		assert.Contains(t, ids, "a2")
	})
}
