package main

import (
	"community-intelligence-backend/config"
	"community-intelligence-backend/dao"
	documentstorage "community-intelligence-backend/service/document-storage"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/service/storage"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// importCmd 在本地同步执行一次导入，Ctrl-C 在处理下一个文件前停止
func importCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import an archive synchronously against the configured database and OSS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %v", err)
			}

			cfg := config.Cfg
			if err := dao.Init(cfg.MySQL.DSN); err != nil {
				return err
			}
			store, err := storage.NewOSSStore(cfg.OSS)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result := runImport(ctx, store, cfg.Import, documentstorage.Archive{
				Name: filepath.Base(args[0]),
				Data: data,
			}, email, func(s progress.Snapshot) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %-20s %s\n", s.Percent, s.Stage, s.Message)
			})

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return fmt.Errorf("failed to write result: %v", err)
			}
			if !result.Success {
				return fmt.Errorf("import failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email recorded as the importing user")
	return cmd
}

func runImport(ctx context.Context, store storage.ObjectStore, importCfg config.ImportConfig, archive documentstorage.Archive, email string, onProgress func(progress.Snapshot)) *documentstorage.Result {
	processor := documentstorage.NewProcessor(store, progress.NewMemoryStore(), importCfg.DocumentPrefix).
		LimitExtractedBytes(importCfg.MaxExtractedBytes)
	return processor.ProcessHierarchicalZip(ctx, archive, documentstorage.Options{
		JobID:      uuid.NewString(),
		UserEmail:  email,
		OnProgress: onProgress,
	})
}
