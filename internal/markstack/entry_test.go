package markstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectEntryRoundTripsAlignedAddress(t *testing.T) {
	addr := uintptr(0x7F0000001000)
	e := NewObjectEntry(addr, true, false)

	assert.Equal(t, KindObject, e.Kind())
	gotAddr, follow, final := e.Object()
	assert.Equal(t, addr, gotAddr)
	assert.True(t, follow)
	assert.False(t, final)
}

func TestObjectEntryDiscardsLowAlignmentBits(t *testing.T) {
	e := NewObjectEntry(0x1005, false, false)
	addr, _, _ := e.Object()
	assert.Equal(t, uintptr(0x1000), addr)
}

func TestObjectEntryPreservesFinalizableFlag(t *testing.T) {
	e := NewObjectEntry(0x2000, false, true)
	_, follow, final := e.Object()
	assert.False(t, follow)
	assert.True(t, final)
}

func TestPartialArrayEntryRoundTripsFields(t *testing.T) {
	e := NewPartialArrayEntry(12345, 678, true)
	assert.Equal(t, KindPartialArray, e.Kind())

	offset, length, final := e.PartialArray()
	assert.Equal(t, uint64(12345), offset)
	assert.Equal(t, uint32(678), length)
	assert.True(t, final)
}

func TestObjectAccessorPanicsOnPartialArrayEntry(t *testing.T) {
	e := NewPartialArrayEntry(0, 0, false)
	assert.Panics(t, func() { e.Object() })
}

func TestPartialArrayAccessorPanicsOnObjectEntry(t *testing.T) {
	e := NewObjectEntry(0x3000, false, false)
	assert.Panics(t, func() { e.PartialArray() })
}

func TestEntryStringFormatsBothVariants(t *testing.T) {
	obj := NewObjectEntry(0x4000, true, false)
	pa := NewPartialArrayEntry(10, 20, false)
	assert.Contains(t, obj.String(), "Object")
	assert.Contains(t, pa.String(), "PartialArray")
}
