package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rjrssync/rjrssync/internal/embed"
	"github.com/spf13/cobra"
)

// newListEmbeddedBinariesCommand builds the list-embedded-binaries
// subcommand registered on the root command.
func newListEmbeddedBinariesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-embedded-binaries",
		Short: "List the platform binaries embedded in this executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEmbeddedBinaries(cmd.OutOrStdout())
		},
	}
}

// listEmbeddedBinaries implements list-embedded-binaries: it reads
// this process's own executable bytes and prints every platform tag
// section found in its trailer (spec section 4.4's on-disk payload
// format), or a single line if this is a lite binary with none.
func listEmbeddedBinaries(w io.Writer) error {
	data, err := embed.ReadOwnExecutable()
	if err != nil {
		return err
	}
	sections, err := embed.ListSections(data)
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		fmt.Fprintln(w, "this is a lite binary: no embedded sections")
		return nil
	}
	for _, s := range sections {
		fmt.Fprintf(w, "%-20s %s\n", s.Platform, humanize.Bytes(uint64(s.CompressedSize)))
	}
	return nil
}
