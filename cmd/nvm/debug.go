package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/stackvm/config"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm"
)

// runDebugger steps through s under commands read from in.
func runDebugger(cfg *config.Config, opts options, s *script.Script, in io.Reader, out io.Writer) (int, error) {
	e, err := newEngine(cfg, opts)
	if err != nil {
		return 1, err
	}
	h, closeHost, err := newHost(cfg)
	if err != nil {
		return 1, err
	}
	defer closeHost()

	h.Attach(e)
	if err := h.Storage().Begin(); err != nil {
		return 1, err
	}
	if _, err := e.LoadScript(s, -1, 0); err != nil {
		h.Storage().Discard()
		return 1, err
	}
	d := vm.NewDebugger(e)
	for _, bp := range opts.breakpoints {
		d.AddBreakpoint(s, bp)
	}

	fmt.Fprintln(out, "stackvm debugger (type 'help' for commands)")
	showLocation(out, e)

	scanner := bufio.NewScanner(in)
	for !terminal(e) {
		fmt.Fprint(out, "(nvm) ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "q" {
			break
		}
		debugCommand(out, d, s, fields)
	}

	if e.State() == vm.HALT {
		if err := h.Storage().Commit(); err != nil {
			return 1, err
		}
	} else {
		h.Storage().Discard()
	}
	printOutcome(out, e)
	if e.State() != vm.HALT {
		return 1, nil
	}
	return 0, nil
}

func terminal(e *vm.Engine) bool {
	return e.State() == vm.HALT || e.State() == vm.FAULT
}

func debugCommand(out io.Writer, d *vm.Debugger, s *script.Script, fields []string) {
	e := d.Engine()
	switch fields[0] {
	case "help", "h":
		fmt.Fprintln(out, "  step|s        execute one instruction")
		fmt.Fprintln(out, "  next|n        step over calls")
		fmt.Fprintln(out, "  out|o         run until the current frame returns")
		fmt.Fprintln(out, "  continue|c    run to the next breakpoint")
		fmt.Fprintln(out, "  break|b POS   add a breakpoint")
		fmt.Fprintln(out, "  delete|d POS  remove a breakpoint")
		fmt.Fprintln(out, "  list|l        list breakpoints")
		fmt.Fprintln(out, "  stack         show the evaluation stack")
		fmt.Fprintln(out, "  inspect|i N   show stack item N in depth")
		fmt.Fprintln(out, "  slots         show locals, arguments and statics")
		fmt.Fprintln(out, "  frames        show the invocation stack")
		fmt.Fprintln(out, "  quit|q        stop debugging")
	case "step", "s":
		d.StepInto()
		showLocation(out, e)
	case "next", "n":
		d.StepOver()
		showLocation(out, e)
	case "out", "o":
		d.StepOut()
		showLocation(out, e)
	case "continue", "c":
		d.Execute()
		showLocation(out, e)
	case "break", "b", "delete", "d":
		if len(fields) != 2 {
			fmt.Fprintf(out, "usage: %s POS\n", fields[0])
			return
		}
		pos, err := strconv.ParseInt(fields[1], 0, 32)
		if err != nil {
			fmt.Fprintf(out, "bad position %q\n", fields[1])
			return
		}
		if fields[0] == "break" || fields[0] == "b" {
			d.AddBreakpoint(s, int(pos))
			fmt.Fprintf(out, "breakpoint at %04X\n", pos)
		} else if !d.RemoveBreakpoint(s, int(pos)) {
			fmt.Fprintf(out, "no breakpoint at %04X\n", pos)
		}
	case "list", "l":
		for _, bp := range d.Breakpoints() {
			fmt.Fprintf(out, "  %04X active=%t\n", bp.Position, bp.Active)
		}
	case "stack":
		if ctx := e.CurrentContext(); ctx != nil {
			items := ctx.EvaluationStack().Items()
			for i := len(items) - 1; i >= 0; i-- {
				fmt.Fprintf(out, "  [%d] %s\n", len(items)-1-i, items[i])
			}
		}
	case "inspect", "i":
		ctx := e.CurrentContext()
		if ctx == nil {
			return
		}
		n := 0
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintf(out, "bad index %q\n", fields[1])
				return
			}
			n = v
		}
		item, err := ctx.EvaluationStack().Peek(n)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		fmt.Fprint(out, vm.Inspect(item).String())
	case "slots":
		if ctx := e.CurrentContext(); ctx != nil {
			showSlot(out, "local", ctx.LocalVariables())
			showSlot(out, "arg", ctx.Arguments())
			showSlot(out, "static", ctx.StaticFields())
		}
	case "frames":
		frames := e.InvocationStack()
		for i := len(frames) - 1; i >= 0; i-- {
			fmt.Fprintf(out, "  #%d %x @ %04X\n", len(frames)-1-i, frames[i].Script().Hash(), frames[i].IP())
		}
	default:
		fmt.Fprintf(out, "unknown command %q\n", fields[0])
	}
}

func showSlot(out io.Writer, name string, slot *vm.Slot) {
	if slot == nil {
		return
	}
	for i, item := range slot.Items() {
		fmt.Fprintf(out, "  %s%d = %s\n", name, i, item)
	}
}

func showLocation(out io.Writer, e *vm.Engine) {
	ctx := e.CurrentContext()
	if ctx == nil || terminal(e) {
		fmt.Fprintf(out, "%s\n", e.State())
		return
	}
	ins, err := ctx.CurrentInstruction()
	if err != nil {
		fmt.Fprintf(out, "%04X  <%v>\n", ctx.IP(), err)
		return
	}
	fmt.Fprintf(out, "%04X  %s\n", ctx.IP(), ins.String())
}
