// cmd/hoistc is a small CLI driver over the back end: it parses a
// textual IR file (internal/irtext's grammar) and runs it through one
// pipeline stage at a time, for debugging and for the testscript
// fixtures under cmd/hoistc/testdata.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelreymont/hoist-sub004/internal/compile"
	"github.com/joelreymont/hoist-sub004/internal/egraph"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/irtext"
	"github.com/joelreymont/hoist-sub004/internal/types"
	"github.com/joelreymont/hoist-sub004/internal/verify"
)

func main() {
	os.Exit(run())
}

// run builds and executes the command tree, returning a process exit
// code. Split out from main so the testscript harness in
// main_test.go can invoke it in-process as a registered command.
func run() int {
	root := &cobra.Command{
		Use:   "hoistc",
		Short: "Retargetable SSA back end: parse, verify, optimize, and compile textual IR",
	}

	root.AddCommand(parseCmd(), verifyCmd(), optimizeCmd(), compileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hoistc:", err)
		return 1
	}
	return 0
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a textual IR file and print it back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := types.NewPool()
			f, err := parseFile(pool, args[0])
			if err != nil {
				return err
			}
			text, err := irtext.Print(f, pool)
			if err != nil {
				return fmt.Errorf("print: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [file]",
		Short: "Parse and verify a textual IR file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := types.NewPool()
			f, err := parseFile(pool, args[0])
			if err != nil {
				return err
			}
			if err := verify.Verify(pool, f); err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", f.Name)
			return nil
		},
	}
}

func optimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize [file]",
		Short: "Parse, verify, and run equality saturation, printing the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := types.NewPool()
			f, err := parseFile(pool, args[0])
			if err != nil {
				return err
			}
			if err := verify.Verify(pool, f); err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			optimized, err := egraph.Optimize(pool, f)
			if err != nil {
				return fmt.Errorf("optimize: %w", err)
			}
			text, err := irtext.Print(optimized, pool)
			if err != nil {
				return fmt.Errorf("print: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	var (
		archFlag  string
		optFlag   bool
		traceFlag bool
		dumpAsm   bool
	)

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Run the full pipeline and print a hex dump of the resulting code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := types.NewPool()
			f, err := parseFile(pool, args[0])
			if err != nil {
				return err
			}

			var trace bytes.Buffer
			opts := []compile.Option{compile.WithOptimize(optFlag), compile.WithDisassembly(dumpAsm)}
			if traceFlag {
				opts = append(opts, compile.WithTrace(&trace))
			}
			options, err := compile.NewOptions(compile.Arch(archFlag), opts...)
			if err != nil {
				return err
			}

			code, err := compile.Compile(pool, f, options)
			if traceFlag {
				fmt.Fprint(cmd.ErrOrStderr(), trace.String())
			}
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			if dumpAsm {
				for _, line := range code.Disasm {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes, frame %d, %d relocations\n",
				len(code.Bytes), code.StackSize, len(code.Relocs))
			for i := 0; i < len(code.Bytes); i += 4 {
				fmt.Fprintf(cmd.OutOrStdout(), "%04x: % x\n", i, code.Bytes[i:min(i+4, len(code.Bytes))])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archFlag, "target", string(compile.ArchAArch64), "target architecture: aarch64 or riscv64")
	cmd.Flags().BoolVar(&optFlag, "opt", false, "run the e-graph optimizer before legalizing")
	cmd.Flags().BoolVar(&traceFlag, "trace", false, "print one line per completed pipeline stage to stderr")
	cmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "print the lowered instructions before the hex dump")

	return cmd
}

func parseFile(pool *types.Pool, path string) (*ir.Function, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := irtext.Parse(pool, string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
