// nvm CLI - runs, debugs and disassembles stackvm scripts
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/stackvm/config"
)

// options holds the parsed command line.
type options struct {
	configPath  string
	hex         bool
	strict      bool
	trace       bool
	record      bool
	profile     bool
	breakpoints []int
	verbosity   int
	limit       int
	timeout     time.Duration
}

func main() {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "Path to stackvm.toml (default: search upwards from the working directory)")
	flag.BoolVar(&opts.hex, "hex", false, "Script file holds hex text instead of raw bytes")
	flag.BoolVar(&opts.strict, "strict", false, "Validate jump targets and operands on load")
	flag.BoolVar(&opts.trace, "trace", false, "Log every instruction at debug level")
	flag.BoolVar(&opts.record, "record", false, "Record the run in the history database")
	flag.BoolVar(&opts.profile, "profile", false, "Print an opcode histogram and hot positions after run")
	breaks := flag.String("break", "", "Comma-separated breakpoint positions for debug")
	flag.IntVar(&opts.verbosity, "v", -1, "Log verbosity 0-2 (default from config)")
	flag.IntVar(&opts.limit, "n", 20, "Number of runs shown by history")
	flag.DurationVar(&opts.timeout, "timeout", 0, "Stop run after this long (0 means no limit)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nvm [options] <command> [file]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run <file>      Execute a script and print the result stack\n")
		fmt.Fprintf(os.Stderr, "  debug <file>    Step through a script interactively\n")
		fmt.Fprintf(os.Stderr, "  disasm <file>   Print the instruction listing\n")
		fmt.Fprintf(os.Stderr, "  history [id]    List recorded runs, or show one\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nvm run add.nef\n")
		fmt.Fprintf(os.Stderr, "  nvm -hex -record run add.hex\n")
		fmt.Fprintf(os.Stderr, "  nvm -break 4,12 debug add.nef\n")
	}
	flag.Parse()

	var err error
	opts.breakpoints, err = parseBreakpoints(*breaks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	configureLogging(cfg, opts.verbosity)

	code, err := dispatch(cfg, opts, args, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// dispatch runs one command and returns the process exit code.
func dispatch(cfg *config.Config, opts options, args []string, in io.Reader, out io.Writer) (int, error) {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run", "debug", "disasm":
		if len(rest) != 1 {
			return 2, fmt.Errorf("%s needs exactly one script file", cmd)
		}
		s, err := readScript(rest[0], opts.hex, opts.strict || cfg.Host.Strict)
		if err != nil {
			return 1, err
		}
		switch cmd {
		case "disasm":
			fmt.Fprint(out, s.Disassemble())
			return 0, nil
		case "debug":
			return runDebugger(cfg, opts, s, in, out)
		default:
			return runScript(cfg, opts, s, out)
		}
	case "history":
		if len(rest) > 1 {
			return 2, fmt.Errorf("history takes at most one run id")
		}
		return showHistory(cfg, opts, rest, out)
	default:
		return 2, fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

// configureLogging applies the config's log section; a non-negative
// verbosity flag overrides it.
func configureLogging(cfg *config.Config, verbosity int) {
	if verbosity < 0 {
		verbosity = cfg.Log.Verbosity
	}
	var path *string
	if cfg.Log.File != "" {
		p := cfg.Path(cfg.Log.File)
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

func parseBreakpoints(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 0, 32)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad breakpoint %q", part)
		}
		out = append(out, int(n))
	}
	return out, nil
}
