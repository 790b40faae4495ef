//go:build ios || android || !(amd64 || arm64)

package main

import (
	"github.com/obinnaokechukwu/ffms"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func newRegistry(string, logrus.Level) (*ffms.DecoderRegistry, ffms.Backend, error) {
	return nil, nil, errors.New("FFmpeg backends are not supported on this platform")
}
