package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/obinnaokechukwu/ffms"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errIndexExists = errors.New("index file already exists, use -f if you are sure you want to overwrite it")

func newRootCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:          "ffmsindex [flags] inputfile [outputfile]",
		Short:        "Build an index file for frame accurate access",
		Version:      ffms.Version,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			return runIndex(cmd, cfg, args)
		},
	}
	f := cmd.Flags()
	f.BoolP("force", "f", false, "overwrite an existing index file")
	f.Int64P("track-mask", "t", 0, "audio tracks to decode, as a bit mask; -1 decodes all")
	f.Int64P("dump-mask", "d", 0, "audio tracks to dump to Wave64 files, as a bit mask")
	f.StringP("audio-name", "a", "", "base name of dumped audio files (default: the input file)")
	f.StringP("errors", "e", "ignore", "audio decode errors: ignore, clear, stop or abort")
	f.BoolP("timecodes", "c", false, "write v2 timecode files for video tracks")
	f.BoolP("keyframes", "k", false, "write key frame lists for video tracks")
	f.StringP("backend", "b", "auto", "backend: auto, lavf or matroska")
	f.Bool("cache", false, "store the index in the user cache directory")
	f.BoolP("verbose", "v", false, "debug logging, including FFmpeg messages")

	cmd.AddCommand(newInfoCommand())
	return cmd
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func runIndex(cmd *cobra.Command, cfg *config, args []string) error {
	input := args[0]
	out, err := outputPath(cfg, args)
	if err != nil {
		return err
	}
	if !cfg.Force {
		if _, err := os.Stat(out); err == nil {
			return errIndexExists
		}
	}
	mode, err := ffms.ParseErrorHandling(cfg.Errors)
	if err != nil {
		return err
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	ffms.SetLogger(log)
	reg, backend, err := newRegistry(cfg.Backend, log.GetLevel())
	if err != nil {
		return err
	}

	opts := []ffms.IndexerOption{
		ffms.WithAudioTracks(cfg.TrackMask),
		ffms.WithErrorHandling(mode),
		ffms.WithIndexerLogger(log),
	}
	if backend != nil {
		opts = append(opts, ffms.WithBackend(backend))
	}
	if cfg.DumpMask != 0 {
		base := cfg.AudioName
		if base == "" {
			base = input
		}
		opts = append(opts, ffms.WithAudioDump(cfg.DumpMask, ffms.Wave64FileSinks(ffms.DefaultAudioName(base))))
	}
	p := newProgress(cmd.ErrOrStderr(), !cfg.Verbose)
	opts = append(opts, ffms.WithProgress(p.update))

	idx, err := ffms.NewIndexer(reg, opts...).Run(cmd.Context(), input)
	if err != nil {
		p.fail("Indexing failed")
		return err
	}
	p.done("Indexing complete")

	if err := idx.Write(out); err != nil {
		return err
	}
	if err := writeTrackFiles(idx, input, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote index to %s\n", color.New(color.FgGreen).Sprint(out))
	return nil
}

// writeTrackFiles writes the timecode and key frame files of every video
// track that was asked for.
func writeTrackFiles(idx *ffms.MediaIndex, input string, cfg *config) error {
	for i, t := range idx.Tracks {
		if t.Type != ffms.TrackTypeVideo {
			continue
		}
		if cfg.Timecodes {
			if err := t.WriteTimecodesFile(fmt.Sprintf("%s_track%02d.tc.txt", input, i)); err != nil {
				return err
			}
		}
		if cfg.Keyframes {
			if err := writeKeyFramesFile(t, fmt.Sprintf("%s_track%02d.kf.txt", input, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeKeyFramesFile(t *ffms.TrackIndex, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create key frame file")
	}
	if err := t.WriteKeyFrames(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "cannot write key frame file")
}
