package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/asar-go/asardec/internal/asar"
	"github.com/asar-go/asardec/internal/utils"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:     "extract <archive> <dest>",
	Aliases: []string{"e"},
	Short:   "Extract a whole asar archive to a directory",
	Long: `Extract writes every entry of the archive under the destination
directory: directories first, then symlinks, then file contents.
Entries marked "unpacked" are copied from the <archive>.unpacked
sibling directory. With --verify, files carrying integrity metadata
are hashed and checked before being written.

The first failing entry aborts the extraction; output written so far
is left on disk.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()

		archive, err := asar.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer archive.Close()

		var totalFiles int
		var totalBytes uint64
		for _, e := range archive.List() {
			if e.Kind == asar.KindFile {
				totalFiles++
				totalBytes += e.Size
			}
		}

		slog.Info("Starting extract...",
			"archive", args[0],
			"dest", args[1],
			"files", totalFiles,
			"verify", cfg.Verify)

		progress := utils.NewProgress(totalFiles, !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug"))

		opts := asar.ExtractOptions{
			Verify:      cfg.Verify,
			Concurrency: cfg.Concurrency,
			OnConflict:  asar.ConflictPolicy(cfg.OnConflict),
			Progress: func(done, total int, path string) {
				progress.Update(done, path)
			},
		}

		err = archive.ExtractAll(cmd.Context(), args[1], opts)
		progress.Finish()
		if err != nil {
			return err
		}

		duration := time.Since(startTime)
		rate := 0.0
		if secs := duration.Seconds(); secs > 0 {
			rate = float64(totalBytes) / secs
		}

		fmt.Printf("Files extracted: %s\n", utils.Number(int64(totalFiles)))
		fmt.Printf("Bytes written: %s\n", utils.Size(totalBytes))
		fmt.Printf("Duration: %s\n", utils.Duration(duration))
		fmt.Printf("Throughput: %s\n", utils.Rate(rate))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
