package counters

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(nil)
	a := NewBuilder("a", 0, 2).DeclareInt(1, "x").Finalize()
	b := NewBuilder("b", 0, 2).DeclareInt(1, "y").Finalize()

	r.Add(a)
	r.Add(b)
	assert.Equal(t, []*CounterSet{a, b}, r.Members())

	r.Remove(a)
	assert.Equal(t, []*CounterSet{b}, r.Members())
	r.Remove(b)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Members())
}

func TestRegistryMembershipViolations(t *testing.T) {
	r := NewRegistry(nil)
	a := NewBuilder("a", 0, 2).DeclareInt(1, "x").Finalize()

	assert.PanicsWithValue(t, ErrNotMember, func() { r.Remove(a) })

	r.Add(a)
	assert.PanicsWithValue(t, ErrAlreadyMember, func() { r.Add(a) })
	assert.Equal(t, 1, r.Len())
}

func newSnapshotRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(nil, opts...)

	osd := NewBuilder("osd", 4, 7).
		DeclareAvgInt(5, "ops").
		DeclareAvgFloat(6, "avg_lat").
		Finalize()
	osd.IncInt(5, 3)
	osd.IncInt(5, 2)
	osd.IncFloat(6, 1.5)

	mds := NewBuilder("mds", 0, 2).DeclareInt(1, "inodes").Finalize()
	mds.SetInt(1, 12)

	r.Add(osd)
	r.Add(mds)
	return r
}

func TestRegistryWriteSnapshotV1(t *testing.T) {
	r := newSnapshotRegistry(t)

	var buf bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&buf))
	assert.Equal(t,
		`{"ops" : { "count" : 2, "sum" : 5 },"avg_lat" : { "count" : 1, "sum" : 1.5 },"inodes" : 12,}`,
		buf.String())
}

func TestRegistryWriteSnapshotV2(t *testing.T) {
	r := newSnapshotRegistry(t, WithFormat(FormatV2))

	var buf bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&buf))
	assert.Equal(t,
		`{"ops" : { "count" : 2, "sum" : 5 },"avg_lat" : { "count" : 1, "sum" : 1.5 },"inodes" : 12}`,
		buf.String())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, float64(12), doc["inodes"])
}

func TestRegistryWriteSnapshotV2Escaping(t *testing.T) {
	s := NewBuilder("odd", 0, 6).
		DeclareFloat(1, "nan").
		DeclareFloat(2, "inf").
		DeclareAvgFloat(3, "neg_inf").
		DeclareInt(4, "a\x01b").
		DeclareInt(5, "q\"\\\n\xff").
		Finalize()
	s.SetFloat(1, math.NaN())
	s.SetFloat(2, math.Inf(1))
	s.IncFloat(3, math.Inf(-1))
	s.SetInt(4, 7)

	r := NewRegistry(nil, WithFormat(FormatV2))
	r.Add(s)

	var buf bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&buf))
	require.True(t, json.Valid(buf.Bytes()), buf.String())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Nil(t, doc["nan"])
	assert.Contains(t, doc, "nan")
	assert.Nil(t, doc["inf"])
	assert.Equal(t, map[string]interface{}{"count": float64(1), "sum": nil}, doc["neg_inf"])
	assert.Equal(t, float64(7), doc["a\x01b"])
	assert.Contains(t, doc, "q\"\\\n\ufffd")

	// format 1 keeps the Go rendering
	var v1 bytes.Buffer
	require.NoError(t, writeDocument(&v1, []*CounterSet{s}, FormatV1))
	assert.Contains(t, v1.String(), `"nan" : NaN,`)
	assert.Contains(t, v1.String(), `"a\x01b" : 7,`)
}

func TestRegistryWriteSnapshotEmpty(t *testing.T) {
	for _, f := range []Format{FormatV1, FormatV2} {
		r := NewRegistry(nil, WithFormat(f))
		r.Add(NewBuilder("none", 0, 1).Finalize())

		var buf bytes.Buffer
		require.NoError(t, r.WriteSnapshot(&buf))
		assert.Equal(t, "{}", buf.String())
	}
}

func TestRegistrySamples(t *testing.T) {
	r := newSnapshotRegistry(t)

	samples := r.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, "osd", samples[0].Set)
	assert.Equal(t, uint64(2), samples[0].Count)
	assert.Equal(t, "mds", samples[2].Set)
	assert.Equal(t, float64(12), samples[2].Value())
}

func TestRegistryClose(t *testing.T) {
	r := newSnapshotRegistry(t)
	r.Close()
	assert.Zero(t, r.Len())
	assert.False(t, r.Running())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(2)
	require.NoError(t, err)
	assert.Equal(t, FormatV2, f)

	_, err = ParseFormat(3)
	assert.Error(t, err)
}
