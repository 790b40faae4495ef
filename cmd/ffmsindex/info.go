package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/obinnaokechukwu/ffms"
	"github.com/spf13/cobra"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info indexfile",
		Short: "Print a summary of an index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := ffms.ReadIndex(args[0], ffms.AnyDecoder)
			if err != nil {
				return err
			}
			printIndex(cmd, idx)
			return nil
		},
	}
}

func printIndex(cmd *cobra.Command, idx *ffms.MediaIndex) {
	w := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Index")
	fmt.Fprintf(w, "  backend:   %s\n", idx.Decoder)
	fmt.Fprintf(w, "  file size: %d\n", idx.FileSize)
	fmt.Fprintf(w, "  digest:    %x\n", idx.Digest)
	fmt.Fprintf(w, "  tracks:    %d\n", idx.NumTracks())
	for i, t := range idx.Tracks {
		bold.Fprintf(w, "Track %d: %s\n", i, t.Type)
		fmt.Fprintf(w, "  time base: %d/%d\n", t.TimeBase.Num, t.TimeBase.Den)
		fmt.Fprintf(w, "  frames:    %d\n", t.Len())
		switch t.Type {
		case ffms.TrackTypeVideo:
			fmt.Fprintf(w, "  keyframes: %d\n", len(t.KeyFrames()))
			if n := t.Len(); n > 0 {
				fmt.Fprintf(w, "  duration:  %.2f ms\n", t.Milliseconds(t.Records[n-1].DTS-t.Records[0].DTS))
			}
		case ffms.TrackTypeAudio:
			if t.HasSampleStarts() {
				fmt.Fprintf(w, "  samples:   %d\n", t.NumSamples())
			} else {
				fmt.Fprintln(w, "  samples:   not indexed")
			}
		}
	}
}
