package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chazu/stackvm/config"
	"github.com/chazu/stackvm/history"
	"github.com/chazu/stackvm/host"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/vm/stackitem"
)

// readScript loads a script file. Hex files may contain whitespace, line
// comments starting with ';' or '#' and an optional 0x prefix.
func readScript(path string, isHex, strict bool) (*script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if isHex {
		data, err = decodeHex(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if strict {
		return script.NewStrict(data)
	}
	return script.New(data), nil
}

func decodeHex(text string) ([]byte, error) {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexAny(line, ";#"); i >= 0 {
			line = line[:i]
		}
		sb.WriteString(strings.Join(strings.Fields(line), ""))
	}
	s := strings.TrimPrefix(strings.TrimPrefix(sb.String(), "0x"), "0X")
	return hex.DecodeString(s)
}

// newEngine builds an engine with the configured limits and logging.
func newEngine(cfg *config.Config, opts options) (*vm.Engine, error) {
	e, err := vm.NewEngineWithLimits(cfg.VMLimits())
	if err != nil {
		return nil, err
	}
	e.SetTrace(opts.trace || cfg.Log.Trace)
	return e, nil
}

// newHost opens the configured storage and returns the host with a
// cleanup function.
func newHost(cfg *config.Config) (*host.Host, func(), error) {
	st, err := host.OpenStorage(cfg.StoragePath())
	if err != nil {
		return nil, nil, err
	}
	return host.New(st), func() { st.Close() }, nil
}

func runScript(cfg *config.Config, opts options, s *script.Script, out io.Writer) (int, error) {
	e, err := newEngine(cfg, opts)
	if err != nil {
		return 1, err
	}
	h, closeHost, err := newHost(cfg)
	if err != nil {
		return 1, err
	}
	defer closeHost()

	var prof *vm.Profiler
	if opts.profile {
		prof = vm.NewProfiler()
		e.SetInstructionHook(prof)
	}

	ctx := context.Background()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	started := time.Now()
	state, err := h.RunContext(ctx, e, s)
	if err != nil {
		return 1, err
	}
	printOutcome(out, e)
	if prof != nil {
		printProfile(out, prof)
	}
	if err := record(cfg, opts, e, s, started, out); err != nil {
		return 1, err
	}
	if state != vm.HALT {
		return 1, nil
	}
	return 0, nil
}

// printOutcome writes the final state, the result stack as JSON (top
// first) and the fault reason.
func printOutcome(out io.Writer, e *vm.Engine) {
	fmt.Fprintf(out, "state: %s\n", e.State())
	items := e.ResultStack().Items()
	if len(items) > 0 {
		fmt.Fprintln(out, "results:")
	}
	for i := len(items) - 1; i >= 0; i-- {
		fmt.Fprintf(out, "  %s\n", itemJSON(items[i]))
	}
	if err := e.FaultException(); err != nil {
		fmt.Fprintf(out, "fault: %v\n", err)
	}
}

func printProfile(out io.Writer, p *vm.Profiler) {
	fmt.Fprintf(out, "instructions: %d\n", p.Total())
	for i, row := range p.Opcodes() {
		if i == 10 {
			break
		}
		fmt.Fprintf(out, "  %-12s %d\n", row.Opcode, row.Count)
	}
	for _, hot := range p.Hot() {
		fmt.Fprintf(out, "  hot %04X %-12s %d\n", hot.Position, hot.Opcode, hot.Count)
	}
}

func itemJSON(item stackitem.Item) string {
	js, err := stackitem.ToJSON(item)
	if err != nil {
		return item.String()
	}
	return string(js)
}

func record(cfg *config.Config, opts options, e *vm.Engine, s *script.Script, started time.Time, out io.Writer) error {
	if !opts.record && !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.Record(history.NewRun(e, s.Hash(), started))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recorded: %s\n", id)
	return nil
}

func showHistory(cfg *config.Config, opts options, ids []string, out io.Writer) (int, error) {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return 1, err
	}
	defer store.Close()

	if len(ids) == 1 {
		r, err := store.Get(ids[0])
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(out, "id:       %s\n", r.ID)
		fmt.Fprintf(out, "script:   %x\n", r.ScriptHash)
		fmt.Fprintf(out, "state:    %s\n", r.State)
		fmt.Fprintf(out, "started:  %s\n", r.Started.Format(time.RFC3339Nano))
		fmt.Fprintf(out, "duration: %s\n", r.Finished.Sub(r.Started))
		if r.Fault != "" {
			fmt.Fprintf(out, "fault:    %s\n", r.Fault)
		}
		for i := len(r.Results) - 1; i >= 0; i-- {
			fmt.Fprintf(out, "  %s\n", itemJSON(r.Results[i]))
		}
		return 0, nil
	}

	runs, err := store.List(opts.limit)
	if err != nil {
		return 1, err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-5s  %x  %s\n", r.ID, r.State, r.ScriptHash[:4], r.Finished.Format(time.RFC3339))
	}
	return 0, nil
}
