package main

import (
	"fmt"

	"github.com/mkrol/marginalia"
	"github.com/mkrol/marginalia/search"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	filter := marginalia.AnnotationFilter{}
	if c.Tag != "" {
		filter.Tag = &c.Tag
	}
	if c.URI != "" {
		filter.URI = &c.URI
	}

	annotations, err := deps.Store.FindAnnotations(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}

	searcher := &search.Searcher{
		Index:    deps.Index,
		Selector: deps.Selector,
		Renderer: deps.Renderer,
		Source:   deps.Source,
		Out:      deps.Stdout,
		Logger:   deps.Logger,
	}
	return searcher.Run(deps.Ctx, annotations, !c.Exact)
}
