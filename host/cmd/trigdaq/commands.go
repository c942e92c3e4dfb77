package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trigdaq/host/daq"
	"trigdaq/protocol"
)

func newCaptureCmd(a *app) *cobra.Command {
	var (
		limit  uint32
		note   string
		dir    string
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Set the limit, arm, wait for the session and export it",
		Long: `Run one complete acquisition.

The limit is sent first, then the trigger is armed. Once the device reports
capture_complete the samples are dumped and written to
<export-dir>/<ddmmyy>_<HHMM>_<note>_<n>.csv.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Capture.Limit
			}
			if !cmd.Flags().Changed("note") {
				note = a.cfg.Export.Note
			}
			if !cmd.Flags().Changed("dir") {
				dir = a.cfg.Export.Dir
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Capture.Timeout)
			defer cancel()

			client, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			taken := time.Now()
			rows, err := client.Capture(ctx, limit)
			if err != nil {
				return err
			}

			tr := daq.Trace{
				Note:    note,
				Limit:   limit,
				VRef:    a.cfg.Capture.VRef,
				Taken:   taken,
				Samples: rows,
			}
			if stdout {
				return daq.WriteCSV(cmd.OutOrStdout(), tr)
			}
			path, err := daq.Export(dir, tr)
			if err != nil {
				return err
			}
			a.log.Info().Str("file", path).Int("samples", len(rows)).Msg("capture exported")
			return nil
		},
	}

	cmd.Flags().Uint32VarP(&limit, "limit", "l", 0, "Samples to capture (1..2500)")
	cmd.Flags().StringVarP(&note, "note", "n", "", "Note used in the export file name")
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Write CSV to stdout instead of a file")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the samples stored in the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *daq.Client) error {
				rows, err := c.Dump(ctx)
				if err != nil {
					return err
				}
				if raw {
					buf := make([]byte, 0, 48)
					for _, row := range rows {
						buf = protocol.AppendSampleLine(buf[:0], row)
						fmt.Fprintln(cmd.OutOrStdout(), string(buf))
					}
					return nil
				}
				return daq.WriteCSV(cmd.OutOrStdout(), daq.Trace{
					Note:    a.cfg.Export.Note,
					Limit:   uint32(len(rows)),
					VRef:    a.cfg.Capture.VRef,
					Taken:   time.Now(),
					Samples: rows,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print device lines without conversion")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the session counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *daq.Client) error {
				st, err := c.Report(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "counter: %d\nwrite_counter: %d\n", st.Count, st.WriteCounter)
				return nil
			})
		},
	}
}

func newArmCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "arm",
		Short: "Arm the trigger for a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *daq.Client) error {
				if err := c.Arm(ctx); err != nil {
					return err
				}
				a.log.Info().Msg("armed")
				if wait <= 0 {
					return nil
				}
				wctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				return c.WaitComplete(wctx)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for capture_complete")
	return cmd
}

func newLimitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "limit <n>",
		Short: "Set the capture limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[0], err)
			}
			return a.withClient(cmd, func(ctx context.Context, c *daq.Client) error {
				return c.SetLimit(ctx, uint32(n))
			})
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reinitialize the ADC on the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *daq.Client) error {
				return c.ResetADC(ctx)
			})
		},
	}
}

// withClient connects, runs fn under the per-command timeout and closes.
func (a *app) withClient(cmd *cobra.Command, fn func(context.Context, *daq.Client) error) error {
	client, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := a.commandContext(cmd)
	defer cancel()
	return fn(ctx, client)
}
