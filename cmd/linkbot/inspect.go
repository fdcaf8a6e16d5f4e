package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/robot-bridge/engine"
	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/native"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the module exports and check the daemon ABI",
		Long: `Compile the daemon module, list its exported functions and report any
export the daemon ABI requires that is missing or has the wrong signature.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), cfg.Module, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runInspect(ctx context.Context, path string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	wasm, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read module "+path)
	}

	eng, err := engine.New(ctx, nil)
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, wasm)
	if err != nil {
		return err
	}
	defer mod.Close(ctx)

	fmt.Fprintf(w, "Module: %s (%d bytes)\n", path, len(wasm))
	exports := mod.Exports()
	fmt.Fprintf(w, "Exports: %d\n", len(exports))
	for _, name := range exports {
		if sig, ok := native.Signatures[native.Operation(name)]; ok {
			fmt.Fprintf(w, "  %s %s\n", name, sig)
			continue
		}
		fmt.Fprintf(w, "  %s\n", name)
	}

	verr := mod.Verify()
	if verr == nil {
		fmt.Fprintln(w, "Daemon ABI: ok")
		return nil
	}

	var missing *errors.MissingExportsError
	if stderrors.As(verr, &missing) {
		fmt.Fprintf(w, "Daemon ABI: %d problem(s)\n", len(missing.Exports))
		for _, m := range missing.Exports {
			fmt.Fprintf(w, "  %s: %s\n", m.Name, m.Reason)
		}
	}
	return verr
}
