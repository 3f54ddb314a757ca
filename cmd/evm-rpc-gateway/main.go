package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ivanzzeth/evm-rpc-transport/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "evm-rpc-gateway",
		Short:        "JSON-RPC gateway over a metered EVM RPC call mechanism",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.AddCommand(newServeCmd(), newEstimateCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	var configPath string
	var reloadInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured rpc services over http and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var server *core.Server
			err := core.WatchConfig(ctx, configPath, reloadInterval, nil, func(running *core.RunningConfig) {
				if server == nil {
					server = core.NewServer(running)
					return
				}
				server.Apply(running)
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:    server.Running().Listen,
				Handler: server,
			}

			go func() {
				<-ctx.Done()
				logrus.Info("shutting down")
				_ = httpServer.Shutdown(context.Background())
			}()

			logrus.Infof("listening on %s", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "config file (yaml or json)")
	cmd.Flags().DurationVar(&reloadInterval, "reload-interval", 3*time.Second, "config reload interval, 0 disables reloading")

	return cmd
}

func newEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [request-json]",
		Short: "Print the max response size a request packet would declare",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 1 {
				raw = []byte(args[0])
			} else {
				bts, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = bts
			}

			packet, err := core.ParseRequestPacket(raw)
			if err != nil {
				return err
			}

			for _, req := range packet.Requests() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %d\n", req.Method(), core.MaxResponseSizeFor(req.Method()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %d\n", "total", core.EstimateMaxResponseSize(packet))

			return nil
		},
	}
}
