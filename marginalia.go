// Package marginalia provides a local, CLI-based organizer for web
// annotations (highlighted quotes, notes, URIs) fetched from a
// Hypothesis-compatible annotation service. Annotations are kept in a
// local tag index that maps tags to annotation IDs and back, and are
// browsed through an interactive fuzzy-search terminal session that
// can add tags, remove tags, delete annotations, or export URIs.
//
// This package contains domain types and interfaces following Ben
// Johnson's Standard Package Layout. Implementations live in
// subdirectories named after their primary dependency (e.g., sqlite/,
// tui/, hypothesis/).
package marginalia
