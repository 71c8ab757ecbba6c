package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glossopoeia/treevm/runtime"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [function...]",
	Short: "Print the bytecode of the demonstration program",
	RunE: func(cmd *cobra.Command, args []string) error {
		rtd, labels := demoProgram()
		machine := runtime.NewReleaseMachine(rtd)
		out := cmd.OutOrStdout()

		ids := make([]int, 0, len(rtd.Frames))
		if len(args) == 0 {
			for id := range rtd.Frames {
				ids = append(ids, id)
			}
		}
		for _, name := range args {
			id, ok := frameByName(rtd, name)
			if !ok {
				return fmt.Errorf("unknown function %q", name)
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			fi := rtd.Frames[id]
			fmt.Fprintf(out, "== %s (args %d, locals %d) ==\n", fi.Name, fi.ArgSize, fi.FrameSize)
			machine.Disassemble(out, fi.Code, labels[id])
			fmt.Fprintln(out)
		}
		log.Debugf("disassembled %d functions", len(ids))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
