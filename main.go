package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/mcncl/goserial/internal/classify"
	"github.com/mcncl/goserial/internal/config"
	"github.com/mcncl/goserial/internal/errors"
	"github.com/mcncl/goserial/internal/formatter"
	"github.com/mcncl/goserial/internal/parser"
	"github.com/mcncl/goserial/internal/registry"
	"github.com/mcncl/goserial/internal/value"
)

// CLI defines the command-line interface
var CLI struct {
	Input         string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Output        string `help:"Path to output file. If not specified, writes to stdout." short:"o" type:"path"`
	Format        string `help:"Output format (json|text). Defaults to the config file or json." short:"F"`
	Config        string `help:"Path to a config file. If not specified, .goserial.yml is searched for upwards." short:"c" type:"path"`
	Check         bool   `help:"Only validate the input, do not write output."`
	AllowTrailing bool   `help:"Accept data after the root JSON value."`
	Debug         bool   `help:"Enable debug logging." short:"d"`
	Version       bool   `help:"Show version information." short:"v"`
	Interactive   bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	parser := kong.Must(&CLI,
		kong.Name("goserial"),
		kong.Description("Validate JSON and re-render it canonically as JSON or text"),
		kong.UsageOnError(),
	)

	// No arguments means interactive mode
	if len(os.Args) == 1 {
		CLI.Interactive = true
	}

	ctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// kong.UsageOnError() has already printed the usage
		os.Exit(1)
	}

	if CLI.Version {
		fmt.Printf("goserial version %s\n", Version)
		return
	}

	cfg, err := config.LoadConfigWithCLI(CLI.Config, CLI.Format, CLI.AllowTrailing, CLI.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(1)
	}
	setupLogging(cfg.Dev.Debug)

	err = run(&Context{Debug: cfg.Dev.Debug, Config: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: goserial --help\n")
		os.Exit(1)
	}

	if ctx.Command() != "" {
		err = ctx.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
			os.Exit(1)
		}
	}
}

// setupLogging installs a stderr text logger at debug or warn level.
func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// run executes the main program logic
func run(ctx *Context) error {
	cfg := ctx.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}

	// 1. Parse JSON input
	root, err := parseInput(parser.AllowTrailing(cfg.Parse.AllowTrailing))
	if err != nil {
		return err
	}
	slog.Debug("parsed input", "kind", root.Kind())

	// 2. Validate only
	if CLI.Check {
		fmt.Fprintln(os.Stderr, "Input is valid JSON")
		return nil
	}

	// 3. Render in the selected format
	c := classify.New(registry.Default, classify.WithKeyCase(cfg.KeyCase()))
	out, err := formatter.NewFormatter(c, cfg.WireFormat()).FormatString(root)
	if err != nil {
		return err
	}
	slog.Debug("rendered output", "format", cfg.WireFormat(), "bytes", len(out))

	if cfg.Output.Newline {
		out += "\n"
	}

	// 4. Output the result
	return writeOutput(out)
}

// parseInput reads JSON from file or stdin
func parseInput(opts ...parser.Option) (value.Value, error) {
	if CLI.Input != "" {
		slog.Debug("reading input file", "path", CLI.Input)
		return parser.ParseFile(CLI.Input, opts...)
	}

	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return value.Value{}, errors.NewInputError("failed to access stdin", err)
	}

	if (stdinInfo.Mode() & os.ModeCharDevice) != 0 {
		// Terminal is interactive (not piped)
		if CLI.Interactive {
			return readInteractiveInput(opts...)
		}
		return value.Value{}, errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	jsonData, err := io.ReadAll(os.Stdin)
	if err != nil {
		return value.Value{}, errors.NewInputError("failed to read from stdin", err)
	}

	if len(jsonData) == 0 {
		return value.Value{}, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}

	return parser.ParseBytes(jsonData, opts...)
}

// writeOutput writes the rendering to file or stdout
func writeOutput(out string) error {
	if CLI.Output != "" {
		err := os.WriteFile(CLI.Output, []byte(out), 0644)
		if err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", CLI.Output), err)
		}
		fmt.Fprintf(os.Stderr, "Output written to %s\n", CLI.Output)
		return nil
	}

	_, err := io.WriteString(os.Stdout, out)
	if err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}

// readInteractiveInput provides an interactive mode for users to paste JSON
// and signal completion with Ctrl+D (EOF)
func readInteractiveInput(opts ...parser.Option) (value.Value, error) {
	fmt.Fprintln(os.Stderr, "goserial interactive mode")
	fmt.Fprintln(os.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(os.Stdin)
	var jsonBuilder strings.Builder

	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return value.Value{}, errors.NewInputError("error reading input", err)
		}
	}

	jsonData := jsonBuilder.String()
	if strings.TrimSpace(jsonData) == "" {
		return value.Value{}, errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(os.Stderr, "\nProcessing JSON...")
	return parser.ParseString(jsonData, opts...)
}
