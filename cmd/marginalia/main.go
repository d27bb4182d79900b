package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mkrol/marginalia"
	"github.com/mkrol/marginalia/hypothesis"
	"github.com/mkrol/marginalia/sqlite"
	"github.com/mkrol/marginalia/template"
	"github.com/mkrol/marginalia/tui"
	"github.com/mkrol/marginalia/yaml"
	"github.com/rs/zerolog"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Configuration file path. Set before calling Run().
	ConfigPath string

	// Loaded configuration, available after Run() starts.
	Config *marginalia.Config

	// SQLite database used by the store and index.
	DB *sqlite.DB

	// Services for end-to-end testing.
	Configs marginalia.ConfigService
	Store   marginalia.AnnotationStore
	Index   marginalia.TagIndex
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		ConfigPath: yaml.DefaultPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("marginalia"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'marginalia --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := zerolog.New(stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if cli.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}
	deps.Logger = logger

	m.Configs = yaml.NewConfigService(m.ConfigPath)
	deps.Configs = m.Configs

	cfg, err := m.Configs.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Hint: fix or remove %s\n", m.Configs.Path())
		return err
	}
	m.Config = cfg
	deps.Config = cfg

	// The config command must work before a database exists.
	if cmd == "config" {
		return kongCtx.Run(deps)
	}

	m.DB = sqlite.NewDB(cfg.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: set db_path in %s to use a different database location\n", m.Configs.Path())
		return fmt.Errorf("failed to open database at %q: %w", cfg.DBPath, err)
	}
	defer m.Close()

	m.Store = sqlite.NewAnnotationStore(m.DB)
	m.Index = sqlite.NewTagIndex(m.DB)
	deps.DB = m.DB
	deps.Store = m.Store
	deps.Index = m.Index
	deps.Selector = tui.NewSelector()

	body := cfg.AnnotationTemplate
	if body == "" {
		body = template.Default
	}
	renderer, err := template.NewRenderer(body)
	if err != nil {
		fmt.Fprintf(stderr, "Hint: fix annotation_template in %s\n", m.Configs.Path())
		return err
	}
	deps.Renderer = renderer

	if cfg.APIToken != "" {
		deps.Source = hypothesis.NewClient(cfg.APIBase, cfg.APIToken,
			hypothesis.WithGroups(cfg.Groups),
			hypothesis.WithLogger(logger),
		)
	}

	return kongCtx.Run(deps)
}
