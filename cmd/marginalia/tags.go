package main

import (
	"fmt"

	"github.com/mkrol/marginalia"
)

// Run executes the tags command.
func (c *TagsCmd) Run(deps *Dependencies) error {
	counts, err := deps.Index.TagCounts(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}

	if len(counts) == 0 {
		fmt.Fprintln(deps.Stdout, "No tags yet. Use 'marginalia search' or 'marginalia tag' to create some.")
		return nil
	}

	for _, tc := range counts {
		fmt.Fprintf(deps.Stdout, "%5d  %s\n", tc.Count, tc.Tag)
	}
	return nil
}
