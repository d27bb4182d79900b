package main

import (
	"fmt"
	"sort"

	"github.com/mkrol/marginalia"
)

// Run executes the uri command.
func (c *URICmd) Run(deps *Dependencies) error {
	var annotations []*marginalia.Annotation

	if c.Tag != "" {
		ids, err := deps.Index.AnnotationsWithTag(deps.Ctx, c.Tag)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintf(deps.Stderr, "error: you haven't tagged anything as %q yet\n", c.Tag)
			return marginalia.Errorf(marginalia.ENOTFOUND, "you haven't tagged anything as %q yet", c.Tag)
		}
		for _, id := range ids {
			a, err := deps.Store.FindAnnotationByID(deps.Ctx, id)
			if err != nil {
				fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
				return err
			}
			annotations = append(annotations, a)
		}
	} else {
		var err error
		annotations, err = deps.Store.FindAnnotations(deps.Ctx, marginalia.AnnotationFilter{})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
			return err
		}
	}

	seen := make(map[string]bool, len(annotations))
	var uris []string
	for _, a := range annotations {
		if a.URI == "" || seen[a.URI] {
			continue
		}
		seen[a.URI] = true
		uris = append(uris, a.URI)
	}
	sort.Strings(uris)

	for _, uri := range uris {
		fmt.Fprintln(deps.Stdout, uri)
	}
	return nil
}
