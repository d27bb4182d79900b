package main

import (
	"fmt"

	"github.com/mkrol/marginalia"
)

// Run executes the tag command.
func (c *TagCmd) Run(deps *Dependencies) error {
	annotations, err := resolveAnnotations(deps, c.With, c.URI, c.ID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}
	if len(annotations) == 0 {
		fmt.Fprintln(deps.Stdout, "No matching annotations.")
		return nil
	}

	batch := &marginalia.BatchError{}
	changed := 0
	for _, a := range annotations {
		if c.Delete {
			err = deps.Index.RemoveTag(deps.Ctx, a.ID, c.Tag)
		} else {
			err = deps.Index.AddTag(deps.Ctx, a.ID, c.Tag)
		}
		if err != nil {
			batch.Add(a.ID, err)
			continue
		}
		changed++

		if deps.Source != nil {
			tags, err := deps.Index.TagsOf(deps.Ctx, a.ID)
			if err != nil {
				batch.Add(a.ID, err)
				continue
			}
			if err := deps.Source.UpdateTags(deps.Ctx, a.ID, tags); err != nil {
				batch.Add(a.ID, err)
			}
		}
	}

	verb := "Tagged"
	if c.Delete {
		verb = "Untagged"
	}
	fmt.Fprintf(deps.Stdout, "%s %d annotation(s) with %q\n", verb, changed, c.Tag)
	if err := batch.ErrorOrNil(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}
	return nil
}

// resolveAnnotations turns command-line filters into the annotations a
// command operates on. An explicit ID wins over the other filters.
func resolveAnnotations(deps *Dependencies, withTag, uri, id string) ([]*marginalia.Annotation, error) {
	if id != "" {
		a, err := deps.Store.FindAnnotationByID(deps.Ctx, id)
		if err != nil {
			return nil, err
		}
		return []*marginalia.Annotation{a}, nil
	}

	filter := marginalia.AnnotationFilter{}
	if withTag != "" {
		filter.Tag = &withTag
	}
	if uri != "" {
		filter.URI = &uri
	}
	return deps.Store.FindAnnotations(deps.Ctx, filter)
}
