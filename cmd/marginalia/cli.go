package main

import (
	"context"
	"io"

	"github.com/mkrol/marginalia"
	"github.com/mkrol/marginalia/sqlite"
	"github.com/rs/zerolog"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   zerolog.Logger
	DB       *sqlite.DB
	Config   *marginalia.Config
	Configs  marginalia.ConfigService
	Store    marginalia.AnnotationStore
	Index    marginalia.TagIndex
	Source   marginalia.Source // nil when no API token is configured
	Selector marginalia.Selector
	Renderer marginalia.Renderer
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Debug bool `help:"Enable debug logging"`

	Sync   SyncCmd   `cmd:"" help:"Fetch new and updated annotations from the service"`
	Search SearchCmd `cmd:"" help:"Interactively search, tag, and manage annotations"`
	Tag    TagCmd    `cmd:"" help:"Add or remove a tag on matching annotations"`
	Tags   TagsCmd   `cmd:"" help:"List known tags with usage counts"`
	URI    URICmd    `cmd:"" name:"uri" help:"Print the URIs of tagged annotations"`
	Delete DeleteCmd `cmd:"" help:"Delete matching annotations"`
	Config ConfigCmd `cmd:"" help:"Show or initialize the configuration"`
}

// SyncCmd is the "sync" subcommand.
type SyncCmd struct{}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Tag   string `short:"t" help:"Only annotations carrying this tag"`
	URI   string `short:"u" help:"Only annotations whose URI contains this substring"`
	Exact bool   `short:"e" help:"Exact substring matching instead of fuzzy"`
}

// TagCmd is the "tag" subcommand.
type TagCmd struct {
	Tag    string `arg:"" help:"Tag to add or remove"`
	Delete bool   `short:"d" help:"Remove the tag instead of adding it"`
	With   string `help:"Only annotations already carrying this tag"`
	URI    string `short:"u" help:"Only annotations whose URI contains this substring"`
	ID     string `help:"Only the annotation with this ID"`
}

// TagsCmd is the "tags" subcommand.
type TagsCmd struct{}

// URICmd is the "uri" subcommand.
type URICmd struct {
	Tag string `arg:"" optional:"" help:"Tag to look up; omit for every annotated URI"`
}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	With  string `help:"Only annotations carrying this tag"`
	URI   string `short:"u" help:"Only annotations whose URI contains this substring"`
	ID    string `help:"Only the annotation with this ID"`
	Force bool   `help:"Confirm deletion"`
}

// ConfigCmd is the "config" subcommand.
type ConfigCmd struct {
	Init bool `help:"Write a starter configuration file"`
}
