// Command bookctl formats manuscripts locally and diagnoses a deployment's
// dependencies without going through the HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Anilcodes01/proto-book/internal/app"
	"github.com/Anilcodes01/proto-book/internal/config"
	"github.com/Anilcodes01/proto-book/internal/logging"
	"github.com/Anilcodes01/proto-book/internal/pipeline"
	"github.com/Anilcodes01/proto-book/internal/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdout, os.Stderr)
	if err := c.root().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errChecksFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// cli carries the shared flags and the component constructors. Tests swap
// the constructors to keep browsers and backends out of the loop.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	verbose    bool
	noColor    bool

	cfg    config.Config
	logger zerolog.Logger

	newLocator    func(config.RendererConfig) render.Locator
	newRenderer   func(config.RendererConfig, zerolog.Logger) pipeline.Renderer
	openRecords   func(context.Context, config.DatabaseConfig) (app.RecordStore, error)
	openArtifacts func(context.Context, config.StorageConfig, bool) (app.ArtifactStore, error)
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout:     stdout,
		stderr:     stderr,
		newLocator: app.NewLocator,
		newRenderer: func(cfg config.RendererConfig, logger zerolog.Logger) pipeline.Renderer {
			return app.NewRenderer(cfg, app.NewLocator(cfg), logger)
		},
		openRecords:   app.OpenRecordStore,
		openArtifacts: app.OpenArtifactStore,
	}
}

func (c *cli) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bookctl",
		Short:         "Format .docx manuscripts into print-ready PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.setup()
		},
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(c.convertCmd(), c.doctorCmd())
	return cmd
}

func (c *cli) setup() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", c.envFile, err)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.logger = logging.New(logging.Config{
		Level:       level,
		Format:      "console",
		Output:      c.stderr,
		ServiceName: "bookctl",
	})
	return nil
}

type printer struct {
	w     io.Writer
	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	faint *color.Color
}

func (c *cli) printer() *printer {
	p := &printer{
		w:     c.stdout,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		faint: color.New(color.Faint),
	}
	if c.noColor {
		for _, col := range []*color.Color{p.ok, p.warn, p.fail, p.faint} {
			col.DisableColor()
		}
	}
	return p
}

func (p *printer) success(format string, args ...any) {
	p.ok.Fprintf(p.w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func (p *printer) warning(format string, args ...any) {
	p.warn.Fprintf(p.w, "! %s\n", fmt.Sprintf(format, args...))
}

func (p *printer) failure(format string, args ...any) {
	p.fail.Fprintf(p.w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func (p *printer) detail(format string, args ...any) {
	p.faint.Fprintf(p.w, "  %s\n", fmt.Sprintf(format, args...))
}
