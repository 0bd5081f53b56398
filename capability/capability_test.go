package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	s := Parse("offload, net ,fs")
	assert.True(t, s.Has(Offload))
	assert.True(t, s.Has(Net))
	assert.True(t, s.Has(FS))
	assert.False(t, s.Has(Env))
	assert.Equal(t, []string{"offload", "net", "fs"}, s.List())
}

func TestParseIgnoresUnknownNames(t *testing.T) {
	s := Parse("offload,warp_drive,,  ,net")
	assert.True(t, s.Has(Offload))
	assert.True(t, s.Has(Net))
	assert.Len(t, s.List(), 2)
}

func TestRequireDenied(t *testing.T) {
	s := Parse("net")
	err := s.Require(Offload)
	assert.Error(t, err)

	var denied *DeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, Offload, denied.Capability)
	assert.Contains(t, err.Error(), "offload")
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestRequireGranted(t *testing.T) {
	s := NewSet(Offload)
	assert.NoError(t, s.Require(Offload))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVar, "offload,env")
	s := FromEnv()
	assert.True(t, s.Has(Offload))
	assert.True(t, s.Has(Env))
	assert.False(t, s.Has(Net))
}

func TestEmptySetGrantsNothing(t *testing.T) {
	s := Parse("")
	for c := Capability(0); c < numCapabilities; c++ {
		assert.False(t, s.Has(c), "capability %v", c)
	}

	var nilSet *Set
	assert.False(t, nilSet.Has(Offload))
	assert.Error(t, nilSet.Require(Offload))
}
