// Copyright 2024 Scorehub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scorehub/scorevc/remotesrv"
	"github.com/scorehub/scorevc/store/objects"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		storageDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "host repositories for push and pull",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := remotesrv.DefaultConfig()
			if configPath != "" {
				var err error
				cfg, err = remotesrv.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("storage") {
				cfg.StorageDir = storageDir
			}

			lgr := newLogger().WithField("instance", uuid.NewString())

			var factory remotesrv.StoreFactory
			if cfg.StorageDir != "" {
				root := cfg.StorageDir
				factory = func(repoID string) (objects.Store, error) {
					// Repo ids may carry path separators; flatten them so
					// every repo stays under the storage root.
					dir := strings.ReplaceAll(repoID, "/", "_")
					return objects.NewFileStore(filepath.Join(root, dir))
				}
			}

			hub := remotesrv.NewHub(lgr, factory)
			srv := remotesrv.NewServer(cfg, hub, lgr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.ListenAndServe()
			}()

			select {
			case err := <-errChan:
				return err
			case <-ctx.Done():
			}

			lgr.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.GracefulStop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "yaml config file")
	cmd.Flags().StringVar(&host, "host", "localhost", "listen host")
	cmd.Flags().IntVar(&port, "port", 8520, "listen port")
	cmd.Flags().StringVar(&storageDir, "storage", "", "directory for file-backed object stores (default in-memory)")
	return cmd
}
