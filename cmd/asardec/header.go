package main

import (
	"fmt"
	"os"

	"github.com/asar-go/asardec/internal/asar"
	"github.com/spf13/cobra"
)

var headerCmd = &cobra.Command{
	Use:   "header <archive>",
	Short: "Dump the raw JSON header of an asar archive",
	Long: `Header decodes the archive framing and prints the embedded JSON
payload verbatim, without interpreting its structure. Works even on
archives whose header fails tree validation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", args[0], err)
		}

		hdr, err := asar.DecodeHeader(f, info.Size())
		if err != nil {
			return err
		}

		if _, err := os.Stdout.Write(hdr.JSON); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(headerCmd)
}
