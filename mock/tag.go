package mock

import (
	"context"

	"github.com/mkrol/marginalia"
)

var _ marginalia.TagIndex = (*TagIndex)(nil)

type TagIndex struct {
	AllTagsFn            func(ctx context.Context) ([]string, error)
	TagCountsFn          func(ctx context.Context) ([]marginalia.TagCount, error)
	TagsOfFn             func(ctx context.Context, id string) ([]string, error)
	AnnotationsWithTagFn func(ctx context.Context, tag string) ([]string, error)
	AddTagFn             func(ctx context.Context, id, tag string) error
	RemoveTagFn          func(ctx context.Context, id, tag string) error
	RemoveAnnotationFn   func(ctx context.Context, id string) error
}

func (m *TagIndex) AllTags(ctx context.Context) ([]string, error) {
	return m.AllTagsFn(ctx)
}

func (m *TagIndex) TagCounts(ctx context.Context) ([]marginalia.TagCount, error) {
	return m.TagCountsFn(ctx)
}

func (m *TagIndex) TagsOf(ctx context.Context, id string) ([]string, error) {
	return m.TagsOfFn(ctx, id)
}

func (m *TagIndex) AnnotationsWithTag(ctx context.Context, tag string) ([]string, error) {
	return m.AnnotationsWithTagFn(ctx, tag)
}

func (m *TagIndex) AddTag(ctx context.Context, id, tag string) error {
	return m.AddTagFn(ctx, id, tag)
}

func (m *TagIndex) RemoveTag(ctx context.Context, id, tag string) error {
	return m.RemoveTagFn(ctx, id, tag)
}

func (m *TagIndex) RemoveAnnotation(ctx context.Context, id string) error {
	return m.RemoveAnnotationFn(ctx, id)
}
