package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glossopoeia/treevm/runtime"
)

var (
	exerciseCalls       int
	exerciseFunc        string
	exerciseParams      []string
	exerciseFormat      string
	exerciseDiagnostics bool
	exerciseTrace       bool
	exerciseSegmentSize int
)

var defaultParams = []string{"a", "bb"}

var exerciseCmd = &cobra.Command{
	Use:   "exercise [program arguments...]",
	Short: "Run the demonstration program and report runtime memory usage",
	Long: `exercise creates a program around the built-in demonstration bytecode, runs
its root code with the given arguments, calls one of its functions repeatedly
and deletes the program again. The report lists the stack segments and pool
blocks the run needed and, with diagnostics enabled, any nodes that were
never released.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("diagnostics") {
			cfg.Diagnostics.Enabled = exerciseDiagnostics
		}
		if cmd.Flags().Changed("trace") {
			cfg.Diagnostics.Trace = exerciseTrace
		}
		if cmd.Flags().Changed("segment-size") {
			cfg.Stack.SegmentSize = exerciseSegmentSize
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		rtd, _ := demoProgram()
		frameID, ok := frameByName(rtd, exerciseFunc)
		if !ok || frameID == rtd.RootFrameID {
			return fmt.Errorf("unknown function %q", exerciseFunc)
		}
		argSize := rtd.Frames[frameID].ArgSize
		paramValues := exerciseParams
		if !cmd.Flags().Changed("param") {
			paramValues = defaultParams[:argSize]
		}
		if len(paramValues) != argSize {
			return fmt.Errorf("function %q takes %d parameters, got %d", exerciseFunc, argSize, len(paramValues))
		}

		machine := runtime.NewReleaseMachine(rtd)
		machine.Trace = cfg.Diagnostics.Trace
		prg := runtime.NewProgram(rtd, machine, cfg)
		log.Infof("exercising program %s", prg.ID)

		prg.RunProgram(args)

		params := make([]*string, len(paramValues))
		for i := range paramValues {
			params[i] = &paramValues[i]
		}
		for i := 0; i < exerciseCalls; i++ {
			prg.RunFunc(frameID, params)
		}

		r := newReport(prg)
		status, leaks := prg.Delete()
		r.finish(status, leaks)

		return r.write(cmd.OutOrStdout(), exerciseFormat)
	},
}

func init() {
	exerciseCmd.Flags().IntVarP(&exerciseCalls, "calls", "n", 1, "number of times to call the function")
	exerciseCmd.Flags().StringVarP(&exerciseFunc, "func", "f", "pair", "function to call (pair or twice)")
	exerciseCmd.Flags().StringSliceVarP(&exerciseParams, "param", "p", nil, "string parameters passed to the function (default \"a,bb\" as needed)")
	exerciseCmd.Flags().StringVar(&exerciseFormat, "format", "text", "report format (text or yaml)")
	exerciseCmd.Flags().BoolVar(&exerciseDiagnostics, "diagnostics", false, "count pool allocations and report lost nodes")
	exerciseCmd.Flags().BoolVar(&exerciseTrace, "trace", false, "log every executed instruction at debug level")
	exerciseCmd.Flags().IntVar(&exerciseSegmentSize, "segment-size", 0, "stack segment size in slots")
	rootCmd.AddCommand(exerciseCmd)
}
