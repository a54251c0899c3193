package keyspaces

import (
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronograph-io/chronograph/internal/domain"
)

func TestEndpoint(t *testing.T) {
	host, err := Endpoint("us-east-2")
	require.NoError(t, err)
	assert.Equal(t, "cassandra.us-east-2.amazonaws.com", host)

	host, err = Endpoint("cn-north-1")
	require.NoError(t, err)
	assert.Equal(t, "cassandra.cn-north-1.amazonaws.com.cn", host)

	_, err = Endpoint("mars-central-1")
	assert.ErrorIs(t, err, ErrUnsupportedRegion)
}

func TestValidReadConsistency(t *testing.T) {
	for _, cl := range []gocql.Consistency{gocql.One, gocql.LocalOne, gocql.LocalQuorum} {
		assert.True(t, validReadConsistency(cl), cl.String())
	}
	for _, cl := range []gocql.Consistency{gocql.Quorum, gocql.All, gocql.Two, gocql.EachQuorum} {
		assert.False(t, validReadConsistency(cl), cl.String())
	}
}

// sliceIter feeds a fixed id sequence through the NodeIDIter contract,
// standing in for a backend scan that reports duplicates.
type sliceIter struct {
	ids    []domain.NodeID
	pos    int
	closed bool
}

func (it *sliceIter) Next() (domain.NodeID, bool) {
	if it.pos >= len(it.ids) {
		return nil, false
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true
}

func (it *sliceIter) Err() error { return nil }

func (it *sliceIter) Close() error {
	it.closed = true
	return nil
}

func TestDistinctIterFiltersDuplicates(t *testing.T) {
	a := domain.NodeID{0x0a}
	b := domain.NodeID{0x0b}
	c := domain.NodeID{0x0c}
	inner := &sliceIter{ids: []domain.NodeID{a, b, a, c, b, a}}

	it := (&backend{}).FilterNodeIDs(inner)

	var got []domain.NodeID
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, id)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []domain.NodeID{a, b, c}, got, "first occurrence order, no duplicates")

	require.NoError(t, it.Close())
	assert.True(t, inner.closed, "close must reach the wrapped iterator")
}

func TestDistinctIterAllDuplicates(t *testing.T) {
	a := domain.NodeID{0x01, 0x02}
	inner := &sliceIter{ids: []domain.NodeID{a, a, a}}
	it := (&backend{}).FilterNodeIDs(inner)

	id, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, a, id)

	_, ok = it.Next()
	assert.False(t, ok, "remaining occurrences are swallowed")
}
