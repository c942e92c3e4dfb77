package main

import (
	"errors"
	"net"
	"time"

	"github.com/spf13/cobra"

	"trigdaq/core"
	"trigdaq/sim"
)

func newSimCmd(a *app) *cobra.Command {
	var (
		listen        string
		triggerPeriod time.Duration
		deferred      bool
		subSamples    uint8
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve a simulated device over TCP",
		Long: `Run the acquisition firmware against a simulated ADC and serve it over TCP,
one host connection at a time. Point other commands at it with
--device tcp://<addr>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := core.DefaultConfig()
			cfg.SubSamples = subSamples
			if deferred {
				cfg.StreamMode = core.StreamDeferred
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			defer ln.Close()
			a.log.Info().Str("addr", ln.Addr().String()).Msg("simulated device listening")

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				ln.Close()
			}()

			for {
				conn, err := ln.Accept()
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
						return nil
					}
					return err
				}
				log := a.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
				dev, err := sim.NewDevice(conn, sim.Options{
					Config:        cfg,
					TriggerPeriod: triggerPeriod,
					Logger:        log,
				})
				if err != nil {
					conn.Close()
					return err
				}
				if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("session ended")
				}
				conn.Close()
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:5555", "TCP listen address")
	cmd.Flags().DurationVar(&triggerPeriod, "trigger-period", time.Millisecond, "Simulated trigger period (0 disables)")
	cmd.Flags().BoolVar(&deferred, "deferred", false, "Stream dumps a few lines per loop cycle")
	cmd.Flags().Uint8Var(&subSamples, "sub-samples", 1, "ADC words averaged per sample")
	return cmd
}
