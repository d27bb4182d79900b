package marginalia

import "context"

// Gesture is the user-issued signal that terminated an interactive
// selection session. The set is closed: the dispatcher matches it
// exhaustively, so adding a gesture is a compile-time-checked change.
type Gesture int

// Gesture values.
const (
	// GestureAbort discards the selection (Esc / Ctrl-C).
	GestureAbort Gesture = iota

	// GestureAccept accepts the selection (Enter). In the annotation
	// browser this opens the add-tag picker; in the tag picker it
	// confirms the chosen tags.
	GestureAccept

	// GestureAddTag explicitly requests the add-tag picker.
	GestureAddTag

	// GestureRemoveTag opens the remove-tag picker for the selection.
	GestureRemoveTag

	// GestureDelete deletes the selected annotations.
	GestureDelete

	// GestureExport prints the distinct URIs of the selection.
	GestureExport
)

// String returns a human-readable name for the gesture.
func (g Gesture) String() string {
	switch g {
	case GestureAbort:
		return "abort"
	case GestureAccept:
		return "accept"
	case GestureAddTag:
		return "add-tag"
	case GestureRemoveTag:
		return "remove-tag"
	case GestureDelete:
		return "delete"
	case GestureExport:
		return "export"
	}
	return "unknown"
}

// SelectItem is one entry presented by a selection session.
type SelectItem struct {
	// ID identifies the item in the returned selection.
	ID string

	// Line is the single display line the user filters against.
	Line string

	// Preview is shown in the preview pane when enabled.
	Preview string
}

// SelectOptions configures a selection session.
type SelectOptions struct {
	// Fuzzy selects fuzzy matching; otherwise matching is
	// case-insensitive substring.
	Fuzzy bool

	// Preview shows a preview pane for the item under the cursor.
	Preview bool

	// Actions enables the gesture keys (remove-tag, delete, export).
	// The lightweight tag picker runs with Actions disabled so only
	// accept and abort can terminate it.
	Actions bool

	// Header is shown above the list, typically key-binding help.
	Header string

	// Prompt is the query-line prompt.
	Prompt string
}

// SelectionResult is the outcome of one selection session. An accept
// gesture with an empty selection is a successful result meaning
// "nothing to do", not an error.
type SelectionResult struct {
	// IDs holds the selected item IDs. Order carries no meaning.
	IDs []string

	// Query is the filter text at the moment the session ended. The
	// tag picker uses it as free-text fallback input.
	Query string

	// Gesture is the signal that ended the session.
	Gesture Gesture
}

// Selector runs interactive selection sessions. A session blocks the
// caller and owns the terminal until a gesture terminates it; no
// background work continues after it returns. A user abort is
// reported through GestureAbort, never as an error.
type Selector interface {
	Select(ctx context.Context, items []SelectItem, opts SelectOptions) (*SelectionResult, error)
}
