// Package search orchestrates the interactive flow: run a selection
// session over annotations, interpret the terminating gesture, open
// the nested tag picker when needed, and apply the resulting tag
// index mutations or export action.
package search

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mkrol/marginalia"
	"github.com/rs/zerolog"
)

const browseHeader = "Arrow keys to scroll, Tab to toggle selection, Ctrl-A to select all, Esc to abort\n" +
	"Enter to add tags, Shift-Left to remove tags, Shift-Right to delete annotations, Shift-Up to print the set of URIs"

const addTagsHeader = "Select tags or type new comma-separated tags to add\n" +
	"Tab to toggle selection, Ctrl-A to select all, Esc to abort, Enter to accept"

const removeTagsHeader = "Select tags to remove\n" +
	"Tab to toggle selection, Ctrl-A to select all, Esc to abort, Enter to accept"

// Searcher runs the search-and-dispatch flow. Index mutations are
// local and authoritative; when a Source is configured, applied
// changes are also pushed to the remote service, and remote failures
// join the batch error without rolling back local commits.
type Searcher struct {
	Index    marginalia.TagIndex
	Selector marginalia.Selector
	Renderer marginalia.Renderer
	Source   marginalia.Source // optional
	Out      io.Writer
	Logger   zerolog.Logger
}

// Run searches the given annotations interactively and applies the
// action the user's terminating gesture asks for. The whole flow is
// synchronous: it returns only after the session has ended and every
// mutation has been attempted.
func (s *Searcher) Run(ctx context.Context, annotations []*marginalia.Annotation, fuzzy bool) error {
	if len(annotations) == 0 {
		fmt.Fprintln(s.Out, "No annotations to search.")
		return nil
	}

	items, err := s.buildItems(annotations)
	if err != nil {
		return err
	}

	res, err := s.Selector.Select(ctx, items, marginalia.SelectOptions{
		Fuzzy:   fuzzy,
		Preview: true,
		Actions: true,
		Header:  browseHeader,
	})
	if err != nil {
		return err
	}

	selected := filterByID(annotations, res.IDs)

	switch res.Gesture {
	case marginalia.GestureAbort:
		return nil

	case marginalia.GestureAccept, marginalia.GestureAddTag:
		if len(selected) == 0 {
			fmt.Fprintln(s.Out, "Nothing selected.")
			return nil
		}
		tags, err := s.pickTags(ctx, selected, true)
		if err != nil || len(tags) == 0 {
			return err
		}
		return s.applyTags(ctx, selected, tags, true)

	case marginalia.GestureRemoveTag:
		if len(selected) == 0 {
			fmt.Fprintln(s.Out, "Nothing selected.")
			return nil
		}
		tags, err := s.pickTags(ctx, selected, false)
		if err != nil || len(tags) == 0 {
			return err
		}
		return s.applyTags(ctx, selected, tags, false)

	case marginalia.GestureDelete:
		if len(selected) == 0 {
			fmt.Fprintln(s.Out, "Nothing selected.")
			return nil
		}
		return s.applyDelete(ctx, selected)

	case marginalia.GestureExport:
		if len(selected) == 0 {
			fmt.Fprintln(s.Out, "Nothing selected.")
			return nil
		}
		return s.exportURIs(selected)
	}

	return marginalia.Errorf(marginalia.EINTERNAL, "unhandled gesture %q", res.Gesture)
}

// buildItems renders one select item per annotation. A render failure
// fails the whole search operation.
func (s *Searcher) buildItems(annotations []*marginalia.Annotation) ([]marginalia.SelectItem, error) {
	items := make([]marginalia.SelectItem, 0, len(annotations))
	for _, a := range annotations {
		preview, err := s.Renderer.Render(a)
		if err != nil {
			return nil, err
		}
		items = append(items, marginalia.SelectItem{
			ID:      a.ID,
			Line:    displayLine(a),
			Preview: preview,
		})
	}
	return items, nil
}

// displayLine flattens an annotation onto a single searchable line:
// quotes, note, tags, and URI.
func displayLine(a *marginalia.Annotation) string {
	quote := strings.ReplaceAll(strings.Join(a.Quotes, " "), "\n", " ")
	text := strings.ReplaceAll(a.Text, "\n", " ")
	return fmt.Sprintf("%s | %s |%s| %s", quote, text, strings.Join(a.Tags, "|"), a.URI)
}

// pickTags opens the nested tag-selection session and returns the
// chosen tags. An abort, or an accept with nothing chosen and nothing
// typed, returns an empty list and no error.
//
// In add mode the candidates are all known tags minus those already
// carried by every selected annotation; a tag universally present
// adds no information. In remove mode the candidates are exactly the
// tags present somewhere in the selection.
func (s *Searcher) pickTags(ctx context.Context, selected []*marginalia.Annotation, add bool) ([]string, error) {
	tagsOf := make(map[string]map[string]bool, len(selected))
	for _, a := range selected {
		tags, err := s.Index.TagsOf(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(tags))
		for _, t := range tags {
			set[t] = true
		}
		tagsOf[a.ID] = set
	}

	var candidates []string
	if add {
		all, err := s.Index.AllTags(ctx)
		if err != nil {
			return nil, err
		}
		for _, tag := range all {
			sharedByAll := true
			for _, a := range selected {
				if !tagsOf[a.ID][tag] {
					sharedByAll = false
					break
				}
			}
			if !sharedByAll {
				candidates = append(candidates, tag)
			}
		}
	} else {
		union := make(map[string]bool)
		for _, set := range tagsOf {
			for tag := range set {
				union[tag] = true
			}
		}
		for tag := range union {
			candidates = append(candidates, tag)
		}
	}
	sort.Strings(candidates)

	items := make([]marginalia.SelectItem, 0, len(candidates))
	for _, tag := range candidates {
		items = append(items, marginalia.SelectItem{ID: tag, Line: tag})
	}

	header := removeTagsHeader
	if add {
		header = addTagsHeader
	}
	res, err := s.Selector.Select(ctx, items, marginalia.SelectOptions{
		Header: header,
		Prompt: "tags> ",
	})
	if err != nil {
		return nil, err
	}
	if res.Gesture != marginalia.GestureAccept {
		return nil, nil
	}
	if len(res.IDs) == 0 && add {
		// Free-text fallback: nothing picked, so the typed query
		// names the new tags.
		return marginalia.ParseTagInput(res.Query), nil
	}
	return res.IDs, nil
}

// applyTags applies the chosen tags to every selected annotation, one
// at a time in input order. A failure on one annotation is recorded
// and the batch moves on; updates already applied stay committed.
func (s *Searcher) applyTags(ctx context.Context, selected []*marginalia.Annotation, tags []string, add bool) error {
	batch := &marginalia.BatchError{}
	applied := 0

	for _, a := range selected {
		failed := false
		for _, tag := range tags {
			var err error
			if add {
				err = s.Index.AddTag(ctx, a.ID, tag)
			} else {
				err = s.Index.RemoveTag(ctx, a.ID, tag)
			}
			if err != nil {
				s.Logger.Warn().Str("id", a.ID).Str("tag", tag).Err(err).Msg("tag update failed")
				batch.Add(a.ID, err)
				failed = true
				break
			}
		}
		if failed {
			continue
		}
		applied++

		if s.Source != nil {
			current, err := s.Index.TagsOf(ctx, a.ID)
			if err != nil {
				batch.Add(a.ID, err)
				continue
			}
			if err := s.Source.UpdateTags(ctx, a.ID, current); err != nil {
				s.Logger.Warn().Str("id", a.ID).Err(err).Msg("remote tag update failed")
				batch.Add(a.ID, err)
			}
		}
	}

	verb := "Removed"
	if add {
		verb = "Added"
	}
	fmt.Fprintf(s.Out, "%s %d tag(s) on %d annotation(s)\n", verb, len(tags), applied)
	return batch.ErrorOrNil()
}

// applyDelete removes every selected annotation from the index, then
// from the remote service when a Source is configured.
func (s *Searcher) applyDelete(ctx context.Context, selected []*marginalia.Annotation) error {
	batch := &marginalia.BatchError{}
	deleted := 0

	for _, a := range selected {
		if err := s.Index.RemoveAnnotation(ctx, a.ID); err != nil {
			s.Logger.Warn().Str("id", a.ID).Err(err).Msg("delete failed")
			batch.Add(a.ID, err)
			continue
		}
		deleted++

		if s.Source != nil {
			if err := s.Source.DeleteAnnotation(ctx, a.ID); err != nil {
				s.Logger.Warn().Str("id", a.ID).Err(err).Msg("remote delete failed")
				batch.Add(a.ID, err)
			}
		}
	}

	fmt.Fprintf(s.Out, "Deleted %d annotation(s)\n", deleted)
	return batch.ErrorOrNil()
}

// exportURIs prints the distinct URIs of the selection, sorted. No
// mutation occurs.
func (s *Searcher) exportURIs(selected []*marginalia.Annotation) error {
	seen := make(map[string]bool, len(selected))
	var uris []string
	for _, a := range selected {
		if a.URI == "" || seen[a.URI] {
			continue
		}
		seen[a.URI] = true
		uris = append(uris, a.URI)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		fmt.Fprintln(s.Out, uri)
	}
	return nil
}

// filterByID returns the annotations whose IDs were selected,
// preserving input order.
func filterByID(annotations []*marginalia.Annotation, ids []string) []*marginalia.Annotation {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*marginalia.Annotation
	for _, a := range annotations {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
