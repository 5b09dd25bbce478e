// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

// MinCapacity and MaxCapacity bound max_capacity at Open, spec.md
// section 4.5 / section 3 ("max_capacity <= B_seq^3").
const (
	MinCapacity = 1
	// MaxCapacity is SequenceBase^SequenceWidth, the largest ring slot count
	// the 3-character base-36 sequence field can address.
	MaxCapacity = 36 * 36 * 36
)

// Option configures a Ring at construction time, the functional-options
// pattern the teacher uses for WAL's Open(dir string, opts ...walOpt).
type Option func(*Config)

// Config gathers everything Open needs to construct a Ring: the identity of
// the ring (control path, tag, capacity) plus its external collaborators
// (filesystem, logger, metrics registerer), all of which spec.md treats as
// given rather than part of the core's responsibility to construct.
type Config struct {
	ControlPath string
	Tag         byte
	MaxCapacity uint

	FS         Filesystem
	Logger     log.Logger
	Registerer prometheus.Registerer
}

// WithFilesystem sets the Filesystem a Ring reads and writes through.
// Defaults to an OSFilesystem rooted at the current directory if unset.
func WithFilesystem(fs Filesystem) Option {
	return func(c *Config) { c.FS = fs }
}

// WithLogger sets the structured logger a Ring reports recoverable
// conditions through. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithRegisterer sets the Prometheus registerer a Ring's metrics are
// registered against. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = reg }
}

func (c *Config) applyDefaults() {
	if c.FS == nil {
		c.FS = NewOSFilesystem(".")
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
}
