// Package capability gates host operations behind a typed allow-list.
//
// The allowed set is parsed once at startup from the MOLT_CAPABILITIES
// environment variable (a comma-separated list, e.g. "offload,net") into an
// immutable Set. Call sites check Require before performing any I/O, so a
// denied offload call produces zero network activity.
package capability

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar is the environment variable holding the capability allow-list.
const EnvVar = "MOLT_CAPABILITIES"

// Capability identifies one permission the host may grant.
type Capability uint8

const (
	// Offload permits delegating calls to the external worker.
	Offload Capability = iota
	// Net permits outbound network access beyond the worker channel.
	Net
	// FS permits filesystem access.
	FS
	// Env permits reading process environment values.
	Env
	// Time permits access to wall-clock time adjustment hooks.
	Time

	numCapabilities
)

var capNames = [numCapabilities]string{
	Offload: "offload",
	Net:     "net",
	FS:      "fs",
	Env:     "env",
	Time:    "time",
}

func (c Capability) String() string {
	if int(c) < len(capNames) {
		return capNames[c]
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// ErrDenied matches any capability denial via errors.Is, regardless of which
// capability was missing.
var ErrDenied = errors.New("capability not granted")

// DeniedError reports a capability check failure.
// It is deliberately outside the offload error taxonomy: a denial happens
// before any call is attempted and maps to a permission failure at the host,
// not to a worker or transport fault.
type DeniedError struct {
	Capability Capability
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("capability %q not granted (set %s)", e.Capability, EnvVar)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// Set is an immutable collection of granted capabilities.
// Construct it once at startup; a zero Set grants nothing.
type Set struct {
	granted [numCapabilities]bool
}

// NewSet builds a Set granting exactly the given capabilities.
func NewSet(caps ...Capability) *Set {
	s := &Set{}
	for _, c := range caps {
		if int(c) < len(s.granted) {
			s.granted[c] = true
		}
	}
	return s
}

// FromEnv parses MOLT_CAPABILITIES into a Set.
// Unknown names are ignored rather than rejected: the variable is shared with
// other tools and may carry capabilities this process does not model.
func FromEnv() *Set {
	return Parse(os.Getenv(EnvVar))
}

// Parse builds a Set from a comma-separated capability list.
// Whitespace around entries is trimmed; empty entries are skipped.
func Parse(raw string) *Set {
	s := &Set{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		for c, n := range capNames {
			if n == name {
				s.granted[c] = true
				break
			}
		}
	}
	return s
}

// Has reports whether the capability is granted.
func (s *Set) Has(c Capability) bool {
	if s == nil || int(c) >= len(s.granted) {
		return false
	}
	return s.granted[c]
}

// Require returns a DeniedError if the capability is not granted.
func (s *Set) Require(c Capability) error {
	if !s.Has(c) {
		return &DeniedError{Capability: c}
	}
	return nil
}

// List returns the granted capability names in declaration order.
func (s *Set) List() []string {
	if s == nil {
		return nil
	}
	var names []string
	for c, ok := range s.granted {
		if ok {
			names = append(names, capNames[c])
		}
	}
	return names
}
