//go:build !ios && !android && (amd64 || arm64)

package main

import (
	"github.com/obinnaokechukwu/ffms"
	"github.com/obinnaokechukwu/ffms/internal/bindings"
	"github.com/obinnaokechukwu/ffms/lavf"
	"github.com/obinnaokechukwu/ffms/matroska"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// newRegistry loads FFmpeg and returns the backends in probe order, plus the
// backend forced by name ("auto" forces none).
func newRegistry(name string, level logrus.Level) (*ffms.DecoderRegistry, ffms.Backend, error) {
	if err := bindings.Load(); err != nil {
		return nil, nil, errors.Wrap(err, "cannot load FFmpeg")
	}
	ffLevel := lavf.LogError
	if level >= logrus.DebugLevel {
		ffLevel = lavf.LevelFor(level)
	}
	if err := lavf.SetLogLevel(ffLevel); err != nil {
		return nil, nil, err
	}

	mkv, lav := matroska.New(), lavf.New()
	reg := ffms.NewDecoderRegistry(mkv, lav)
	switch name {
	case "lavf":
		return reg, lav, nil
	case "matroska":
		return reg, mkv, nil
	}
	return reg, nil, nil
}
