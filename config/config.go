// Package config holds the Config struct spec.md §6 names as the cache
// controller's only configuration input. Parsing flags/files into a Config
// is an ambient CLI concern (cmd/memhier); this package never reads
// os.Args or the filesystem itself.
package config

import "github.com/archsim/memhier/mem/coherence"

// Mode selects which of the three transport disciplines spec.md §4.1
// governs the whole system under at a given instant.
type Mode int

// The cache mode enum named in spec.md §6.
const (
	Timing Mode = iota
	Atomic
	AtomicNoncaching
)

func (m Mode) String() string {
	switch m {
	case Timing:
		return "timing"
	case Atomic:
		return "atomic"
	case AtomicNoncaching:
		return "atomic_noncaching"
	default:
		return "unknown"
	}
}

// Config is the cache controller's sole external configuration input
// (spec.md §6).
type Config struct {
	BlockSize int
	Assoc     int
	NSets     int

	HitLatency int

	MSHREntries      int
	WritebackEntries int

	CoherenceProtocol coherence.Protocol

	PrefetchOnAccess bool

	Mode Mode
}

// DefaultConfig returns a small but workable configuration, useful as a
// base for tests and for the CLI's flag defaults.
func DefaultConfig() Config {
	return Config{
		BlockSize:         64,
		Assoc:             4,
		NSets:             64,
		HitLatency:        2,
		MSHREntries:       4,
		WritebackEntries:  4,
		CoherenceProtocol: coherence.ProtocolMSI,
		PrefetchOnAccess:  false,
		Mode:              Timing,
	}
}

// Validate reports an error describing the first configuration invariant
// Config violates, or nil if it is self-consistent.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return errInvalid("block_size must be a positive power of two")
	}
	if c.Assoc <= 0 {
		return errInvalid("assoc must be positive")
	}
	if c.NSets <= 0 || c.NSets&(c.NSets-1) != 0 {
		return errInvalid("n_sets must be a positive power of two")
	}
	if c.HitLatency < 0 {
		return errInvalid("hit_latency must not be negative")
	}
	if c.MSHREntries <= 0 {
		return errInvalid("mshr_entries must be positive")
	}
	if c.WritebackEntries <= 0 {
		return errInvalid("writeback_entries must be positive")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalid(msg string) error { return configError(msg) }
