package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/asar-go/asardec/internal/asar"
	"github.com/spf13/cobra"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:     "list <archive>",
	Aliases: []string{"l"},
	Short:   "List the contents of an asar archive",
	Long: `List walks the archive tree depth-first and prints one line per
entry. The short format marks directories with a trailing slash and
symlinks with their target; the verbose format adds the declared
SHA-256, the executable bit and the size; the json format emits one
record per entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := asar.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer archive.Close()

		entries := archive.List()

		switch listFormat {
		case "short":
			printShort(entries)
		case "verbose":
			printVerbose(entries)
		case "json":
			return printJSON(entries)
		default:
			return fmt.Errorf("unknown format %q (want short, verbose, or json)", listFormat)
		}
		return nil
	},
}

func printShort(entries []asar.ListEntry) {
	for _, e := range entries {
		switch e.Kind {
		case asar.KindDirectory:
			fmt.Println(e.Path + "/")
		case asar.KindSymlink:
			fmt.Printf("%s -> %s\n", e.Path, e.Link)
		default:
			fmt.Println(e.Path)
		}
	}
}

func printVerbose(entries []asar.ListEntry) {
	fmt.Printf("%-4s %-64s %-10s %12s %s\n", "Type", "SHA-256", "Executable", "Size", "Name")
	fmt.Printf("%-4s %-64s %-10s %12s %s\n", "----", "-------", "----------", "----", "----")
	for _, e := range entries {
		switch e.Kind {
		case asar.KindDirectory:
			fmt.Printf("%-93s %s/\n", "DIR", e.Path)
		case asar.KindSymlink:
			fmt.Printf("%-93s %s -> %s\n", "LINK", e.Path, e.Link)
		default:
			hash := ""
			if e.Integrity != nil {
				hash = e.Integrity.HexHash()
			}
			fmt.Printf("%-4s %-64s %-10t %12d %s\n", "FILE", hash, e.Executable, e.Size, e.Path)
		}
	}
}

type listRecord struct {
	Path       string `json:"path"`
	Type       string `json:"type"`
	Size       uint64 `json:"size,omitempty"`
	Executable bool   `json:"executable,omitempty"`
	Unpacked   bool   `json:"unpacked,omitempty"`
	Link       string `json:"link,omitempty"`
	Hash       string `json:"hash,omitempty"`
}

func printJSON(entries []asar.ListEntry) error {
	records := make([]listRecord, 0, len(entries))
	for _, e := range entries {
		r := listRecord{
			Path:       e.Path,
			Type:       e.Kind.String(),
			Size:       e.Size,
			Executable: e.Executable,
			Unpacked:   e.Unpacked,
			Link:       e.Link,
		}
		if e.Integrity != nil {
			r.Hash = e.Integrity.HexHash()
		}
		records = append(records, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding listing: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "short", "output format (short, verbose, json)")
}
