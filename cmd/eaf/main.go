// Command eaf inspects and transforms ELAN annotation files.
// It lists tiers, prints annotations, pseudonymizes personal names, reads
// back the resulting key files and plans media segment extraction.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/eaftools/core/sqlite"
	"github.com/FocuswithJustin/eaftools/internal/config"
	"github.com/FocuswithJustin/eaftools/internal/logging"
)

const version = "0.4.0"

// CLI defines the command-line interface for eaf.
type CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"YAML config file (default: $EAF_CONFIG)" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text, json"`

	Tiers       TiersCmd       `cmd:"" help:"List the tiers of annotation files"`
	Annotations AnnotationsCmd `cmd:"" help:"Print annotations with their time ranges"`
	GDPR        GDPRCmd        `cmd:"" name:"gdpr" help:"Pseudonymize personal names into <name>.gdpr.eaf"`
	Keys        KeysCmd        `cmd:"" help:"Print the token table of a key file"`
	Extract     ExtractCmd     `cmd:"" help:"Cut media segments for the annotations of a tier"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// App carries the resolved configuration and output streams into commands.
type App struct {
	Config *config.Config
	Stdout io.Writer
}

// setup loads the config file and applies the global logging flags.
func (c *CLI) setup(stdout io.Writer) (*App, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)

	return &App{Config: cfg, Stdout: stdout}, nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(app.Stdout, "eaf version %s (sqlite driver %s, %s)\n", version, info.DriverType, info.Package)
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("eaf"),
		kong.Description("ELAN annotation file utilities"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	app, err := cli.setup(os.Stdout)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(app)
	ctx.FatalIfErrorf(err)
}
