package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/robot-bridge/errors"
)

// NewLedCommand creates the led command.
func NewLedCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "led <serial> <r> <g> <b>",
		Short: "Connect a robot and set its LED colour",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			rgb, err := parseColor(args[1:])
			if err != nil {
				return err
			}
			cfg, logger, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			s, err := openSession(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			robot, err := s.robot(ctx, args[0])
			if err != nil {
				return fmt.Errorf("connect %s: %w", args[0], err)
			}
			if _, err := robot.SetLedColor(ctx, rgb[0], rgb[1], rgb[2]).Await(ctx); err != nil {
				return fmt.Errorf("set led on %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: led set to %d,%d,%d\n", args[0], rgb[0], rgb[1], rgb[2])
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline for connect and set")
	return cmd
}

// parseColor parses three decimal colour components in [0, 255].
func parseColor(args []string) ([3]uint8, error) {
	var rgb [3]uint8
	if len(args) != 3 {
		return rgb, errors.InvalidInput(errors.PhaseBridge, fmt.Sprintf("expected 3 colour components, got %d", len(args)))
	}
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return rgb, errors.InvalidInput(errors.PhaseBridge, fmt.Sprintf("colour component %q must be 0-255", a))
		}
		rgb[i] = uint8(v)
	}
	return rgb, nil
}
