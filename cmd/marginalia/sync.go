package main

import (
	"fmt"

	"github.com/mkrol/marginalia"
)

// Run executes the sync command.
func (c *SyncCmd) Run(deps *Dependencies) error {
	if deps.Source == nil {
		fmt.Fprintf(deps.Stderr, "error: no API token configured. Add api_token to %s\n", deps.Configs.Path())
		return marginalia.Errorf(marginalia.EINVALID, "API token required for sync")
	}

	annotations, err := deps.Source.FetchSince(deps.Ctx, deps.Config.LastSync)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}

	var created, updated, unchanged int
	newest := deps.Config.LastSync
	for _, a := range annotations {
		res, err := deps.Store.UpsertAnnotation(deps.Ctx, a)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
			return err
		}
		switch res {
		case marginalia.UpsertCreated:
			created++
		case marginalia.UpsertUpdated:
			updated++
		case marginalia.UpsertUnchanged:
			unchanged++
		}
		if a.UpdatedAt.After(newest) {
			newest = a.UpdatedAt
		}
	}

	deps.Config.LastSync = newest
	if err := deps.Configs.Save(deps.Config); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Synced %d annotation(s): %d new, %d updated, %d unchanged\n",
		len(annotations), created, updated, unchanged)
	return nil
}
