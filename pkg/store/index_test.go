package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/statelift/pkg/proxy"
)

func TestIndexIgnoresUnregisteredReaders(t *testing.T) {
	ix := newIndex()
	n := proxy.NewObject()

	ix.recordRead(7, n, "a", 1)
	ix.recordKeys(7, n)

	consumers, sets := ix.stats()
	assert.Zero(t, consumers)
	assert.Zero(t, sets)
}

func TestIndexSuppressesIdenticalValues(t *testing.T) {
	ix := newIndex()
	n := proxy.NewObject()
	ix.register(1, Callbacks{})
	ix.register(2, Callbacks{})

	ix.recordRead(1, n, "a", 1)
	ix.recordRead(2, n, "a", 2)

	notices, suppressed := ix.affectedBySet(n, "a", 2)
	require.Len(t, notices, 1)
	assert.Equal(t, uint64(1), notices[0].reg.id)
	assert.Same(t, n, notices[0].target)
	assert.Equal(t, 1, suppressed)
}

func TestIndexNoticesAreOrderedByID(t *testing.T) {
	ix := newIndex()
	n := proxy.NewObject()
	for id := uint64(5); id >= 1; id-- {
		ix.register(id, Callbacks{})
		ix.recordRead(id, n, "k", nil)
	}

	notices := ix.affectedByDelete(n, "k")
	ids := make([]uint64, len(notices))
	for i, no := range notices {
		ids[i] = no.reg.id
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids)
}

func TestIndexUnregisterPrunesEmptySets(t *testing.T) {
	ix := newIndex()
	a, b := proxy.NewObject(), proxy.NewArray(1, 2)
	unregister := ix.register(1, Callbacks{})
	ix.register(2, Callbacks{})

	ix.recordRead(1, a, "x", 1)
	ix.recordRead(2, a, "x", 1)
	ix.recordRead(1, b, "0", 1)
	ix.recordKeys(1, b)

	_, sets := ix.stats()
	assert.Equal(t, 3, sets)

	unregister()
	unregister()

	consumers, sets := ix.stats()
	assert.Equal(t, 1, consumers)
	assert.Equal(t, 1, sets)
	assert.NotContains(t, ix.props, b)
	assert.NotContains(t, ix.keys, b)
}

func TestIndexArrayRecheck(t *testing.T) {
	ix := newIndex()
	arr := proxy.NewArray("a", "b", "c")
	ix.register(1, Callbacks{})
	ix.register(2, Callbacks{})
	ix.register(3, Callbacks{})

	ix.recordRead(1, arr, "0", "a")
	ix.recordRead(2, arr, "2", "c")
	ix.recordKeys(3, arr)

	// Unchanged contents and length: nobody.
	notices, suppressed := ix.affectedByArray(arr, 3)
	assert.Empty(t, notices)
	assert.Equal(t, 2, suppressed)

	// Length changed: enumerators are included even though no read
	// value differs.
	notices, _ = ix.affectedByArray(arr, 4)
	require.Len(t, notices, 1)
	assert.Equal(t, uint64(3), notices[0].reg.id)
}
