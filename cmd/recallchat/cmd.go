package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/asifkhan0410/recallchat"
	"github.com/asifkhan0410/recallchat/config"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	params := &struct {
		ConfigPath string
		Port       int
	}{}
	cmd := &cobra.Command{
		Use:   "recallchat",
		Short: "Chat server with a persistent memory layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			conf, err := config.Load(params.ConfigPath)
			if err != nil {
				return err
			}
			if params.Port != 0 {
				conf.Server.Port = params.Port
			}

			logger := mylog.NewLogger(conf.Log.Level, conf.Log.Handler)

			runtime, err := recallchat.NewChatRuntime(ctx,
				recallchat.WithConfig(conf),
				recallchat.WithLogger(logger),
			)
			if err != nil {
				return errors.Wrap(err, "failed to create chat runtime")
			}
			defer func() {
				if err := runtime.Close(); err != nil {
					logger.Error("failed to close chat runtime", "error", err)
				}
			}()

			handler := newServerHandler(runtime, logger)

			logger.Info("server started", "port", conf.Server.Port)
			defer logger.Info("server stopped")

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", conf.Server.Port),
				Handler: handler,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			go func() {
				<-ctx.Done()
				if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "failed to listen and serve")
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&params.ConfigPath, "config", "c", "", "path to a yaml config file")
	cmd.Flags().IntVarP(&params.Port, "port", "p", 0, "port to listen on (overrides config)")

	return cmd
}
