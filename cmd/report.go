package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/glossopoeia/treevm/runtime"
)

type report struct {
	runtime.Stats `yaml:",inline"`
	ReturnValue   string           `yaml:"return-value,omitempty"`
	ExitStatus    int              `yaml:"exit-status"`
	Lost          map[string]int64 `yaml:"lost,omitempty"`
}

func newReport(prg *runtime.Program) *report {
	r := &report{Stats: prg.Stats()}
	if ret := prg.ReturnValue(); ret != nil {
		r.ReturnValue = ret.String()
	}
	return r
}

func (r *report) finish(status int, leaks runtime.Leaks) {
	r.ExitStatus = status
	if len(leaks) == 0 {
		return
	}
	r.Lost = make(map[string]int64, len(leaks))
	for _, kind := range leaks.Kinds() {
		r.Lost[kind.String()] = leaks[kind]
	}
}

func (r *report) write(w io.Writer, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		r.writeText(w, colorOutput(w))
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

const (
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func (r *report) writeText(w io.Writer, color bool) {
	heading := func(s string) {
		if color {
			fmt.Fprintf(w, "%s%s%s\n", ansiBold, s, ansiReset)
		} else {
			fmt.Fprintln(w, s)
		}
	}

	heading("program " + r.Program)
	fmt.Fprintf(w, "  exit status   %d\n", r.ExitStatus)
	if r.ReturnValue != "" {
		fmt.Fprintf(w, "  return value  %s\n", r.ReturnValue)
	}
	fmt.Fprintf(w, "  heap records  %d\n", r.HeapRecords)

	heading("stack")
	fmt.Fprintf(w, "  segments      %d\n", r.Stack.Segments)
	fmt.Fprintf(w, "  allocated     %d\n", r.Stack.Allocated)
	fmt.Fprintf(w, "  reserve       %d\n", r.Stack.ReserveSize)

	heading("pools")
	for _, ps := range r.Pools {
		if r.Diagnostics {
			fmt.Fprintf(w, "  %-14s blocks %d  free %d  allocated %d  released %d\n", ps.Kind, ps.Blocks, ps.Free, ps.Allocated, ps.Released)
		} else {
			fmt.Fprintf(w, "  %-14s blocks %d  free %d\n", ps.Kind, ps.Blocks, ps.Free)
		}
	}

	if len(r.Lost) == 0 {
		return
	}
	heading("lost")
	for _, ps := range r.Pools {
		n, ok := r.Lost[ps.Kind]
		if !ok {
			continue
		}
		if color {
			fmt.Fprintf(w, "  %-14s %s%d%s\n", ps.Kind, ansiRed, n, ansiReset)
		} else {
			fmt.Fprintf(w, "  %-14s %d\n", ps.Kind, n)
		}
	}
}
