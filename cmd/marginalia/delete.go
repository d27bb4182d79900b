package main

import (
	"fmt"

	"github.com/mkrol/marginalia"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return marginalia.Errorf(marginalia.EINVALID, "use --force to confirm deletion")
	}

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
	deleted := 0
	for _, a := range annotations {
		if err := deps.Index.RemoveAnnotation(deps.Ctx, a.ID); err != nil {
			batch.Add(a.ID, err)
			continue
		}
		deleted++

		if deps.Source != nil {
			if err := deps.Source.DeleteAnnotation(deps.Ctx, a.ID); err != nil {
				batch.Add(a.ID, err)
			}
		}
	}

	fmt.Fprintf(deps.Stdout, "Deleted %d annotation(s)\n", deleted)
	if err := batch.ErrorOrNil(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}
	return nil
}
