package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/db"
	"github.com/xxxsen/studymate/internal/retrieval"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studymate",
		Short: "studymate document ingestion and study assistant server",
	}
	rootCmd.AddCommand(newRunCmd(), newChunkCmd(), newQueryCmd())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run studymate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	return cmd
}

func newChunkCmd() *cobra.Command {
	var (
		file    string
		size    int
		overlap int
		pdfTool string
	)
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "extract and chunk a local file, printing the chunks as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			out, err := chunkFile(cmd.Context(), newExtractor(pdfTool), file, size, overlap)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a pdf, txt or md file")
	cmd.Flags().IntVar(&size, "size", 500, "target chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", 50, "overlap between chunks in characters")
	cmd.Flags().StringVar(&pdfTool, "pdftotext", "", "path to the pdftotext binary")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		file      string
		query     string
		maxChunks int
		size      int
		overlap   int
		pdfTool   string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "chunk a local file and print the chunks ranked against a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			out, err := queryFile(cmd.Context(), newExtractor(pdfTool), file, query, size, overlap, maxChunks)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a pdf, txt or md file")
	cmd.Flags().StringVar(&query, "q", "", "query to rank chunks against")
	cmd.Flags().IntVar(&maxChunks, "max", retrieval.DefaultMaxChunks, "maximum number of chunks to print")
	cmd.Flags().IntVar(&size, "size", 500, "target chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", 50, "overlap between chunks in characters")
	cmd.Flags().StringVar(&pdfTool, "pdftotext", "", "path to the pdftotext binary")
	return cmd
}
