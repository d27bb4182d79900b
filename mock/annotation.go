package mock

import (
	"context"
	"time"

	"github.com/mkrol/marginalia"
)

var _ marginalia.AnnotationStore = (*AnnotationStore)(nil)

type AnnotationStore struct {
	UpsertAnnotationFn   func(ctx context.Context, a *marginalia.Annotation) (marginalia.UpsertResult, error)
	FindAnnotationByIDFn func(ctx context.Context, id string) (*marginalia.Annotation, error)
	FindAnnotationsFn    func(ctx context.Context, filter marginalia.AnnotationFilter) ([]*marginalia.Annotation, error)
	CountAnnotationsFn   func(ctx context.Context) (int, error)
}

func (m *AnnotationStore) UpsertAnnotation(ctx context.Context, a *marginalia.Annotation) (marginalia.UpsertResult, error) {
	return m.UpsertAnnotationFn(ctx, a)
}

func (m *AnnotationStore) FindAnnotationByID(ctx context.Context, id string) (*marginalia.Annotation, error) {
	return m.FindAnnotationByIDFn(ctx, id)
}

func (m *AnnotationStore) FindAnnotations(ctx context.Context, filter marginalia.AnnotationFilter) ([]*marginalia.Annotation, error) {
	return m.FindAnnotationsFn(ctx, filter)
}

func (m *AnnotationStore) CountAnnotations(ctx context.Context) (int, error) {
	return m.CountAnnotationsFn(ctx)
}

var _ marginalia.Source = (*Source)(nil)

type Source struct {
	FetchSinceFn       func(ctx context.Context, since time.Time) ([]*marginalia.Annotation, error)
	UpdateTagsFn       func(ctx context.Context, id string, tags []string) error
	DeleteAnnotationFn func(ctx context.Context, id string) error
}

func (m *Source) FetchSince(ctx context.Context, since time.Time) ([]*marginalia.Annotation, error) {
	return m.FetchSinceFn(ctx, since)
}

func (m *Source) UpdateTags(ctx context.Context, id string, tags []string) error {
	return m.UpdateTagsFn(ctx, id, tags)
}

func (m *Source) DeleteAnnotation(ctx context.Context, id string) error {
	return m.DeleteAnnotationFn(ctx, id)
}

var _ marginalia.Renderer = (*Renderer)(nil)

type Renderer struct {
	RenderFn func(a *marginalia.Annotation) (string, error)
}

func (m *Renderer) Render(a *marginalia.Annotation) (string, error) {
	return m.RenderFn(a)
}
