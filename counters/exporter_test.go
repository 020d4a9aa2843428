package counters

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopsext/proflog/common"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, common.GetGuid()+".sock")
}

func readSnapshot(t *testing.T, path string) string {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func TestExporterServesSnapshot(t *testing.T) {
	r := newSnapshotRegistry(t)
	path := socketPath(t)

	require.NoError(t, r.Init(path))
	defer r.Shutdown()

	assert.True(t, r.Running())
	assert.Equal(t, path, r.Path())

	want := `{"ops" : { "count" : 2, "sum" : 5 },"avg_lat" : { "count" : 1, "sum" : 1.5 },"inodes" : 12,}`
	assert.Equal(t, want, readSnapshot(t, path))

	// live values, one document per connection
	r.Members()[1].SetInt(1, 13)
	assert.Contains(t, readSnapshot(t, path), `"inodes" : 13,`)
}

func TestExporterDisabledRefusesConnections(t *testing.T) {
	r := newSnapshotRegistry(t)
	path := socketPath(t)

	r.HandleConfigChange("")
	assert.False(t, r.Running())

	_, err := net.DialTimeout("unix", path, time.Second)
	assert.Error(t, err)

	r.HandleConfigChange(path)
	require.True(t, r.Running())
	assert.NotEmpty(t, readSnapshot(t, path))

	r.HandleConfigChange("")
	assert.False(t, r.Running())
	_, err = net.DialTimeout("unix", path, time.Second)
	assert.Error(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket file should be removed")
}

func TestExporterInitTwiceTearsDownFirst(t *testing.T) {
	r := newSnapshotRegistry(t)
	first := socketPath(t)
	second := socketPath(t)

	require.NoError(t, r.Init(first))
	e1 := r.exporter

	require.NoError(t, r.Init(second))
	defer r.Shutdown()
	e2 := r.exporter

	require.NotSame(t, e1, e2)
	assert.Equal(t, StateStopped, e1.State())
	select {
	case <-e1.done:
	default:
		t.Fatal("first exporter is still running")
	}

	_, err := net.DialTimeout("unix", first, time.Second)
	assert.Error(t, err)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))

	assert.NotEmpty(t, readSnapshot(t, second))
	assert.Equal(t, second, r.Path())
}

func TestExporterReinitSamePath(t *testing.T) {
	r := newSnapshotRegistry(t)
	path := socketPath(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Init(path))
		assert.NotEmpty(t, readSnapshot(t, path))
	}
	r.Shutdown()
	assert.Equal(t, StateStopped, r.State())
}

func TestExporterInitFailureDisablesExporting(t *testing.T) {
	r := newSnapshotRegistry(t)
	path := socketPath(t)
	require.NoError(t, r.Init(path))

	long := "/tmp/" + strings.Repeat("x", maxSocketPath)
	err := r.Init(long)
	require.ErrorIs(t, err, ErrPathTooLong)

	assert.False(t, r.Running())
	_, err = net.DialTimeout("unix", path, time.Second)
	assert.Error(t, err)

	assert.ErrorIs(t, r.Init(""), ErrEmptyPath)

	missing := filepath.Join(filepath.Dir(path), "missing", "x.sock")
	assert.Error(t, r.Init(missing))
	assert.False(t, r.Running())
}

func TestExporterSocketInUse(t *testing.T) {
	a := newSnapshotRegistry(t)
	b := newSnapshotRegistry(t)
	path := socketPath(t)

	require.NoError(t, a.Init(path))
	defer a.Shutdown()

	assert.ErrorIs(t, b.Init(path), ErrSocketInUse)
	assert.NotEmpty(t, readSnapshot(t, path))
}

func TestExporterRemovesStaleSocket(t *testing.T) {
	path := socketPath(t)

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	ln.SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "stale socket file should exist")

	r := newSnapshotRegistry(t)
	require.NoError(t, r.Init(path))
	defer r.Shutdown()
	assert.NotEmpty(t, readSnapshot(t, path))
}

func TestExporterSocketMode(t *testing.T) {
	r := newSnapshotRegistry(t, WithSocketMode(0600))
	path := socketPath(t)

	require.NoError(t, r.Init(path))
	defer r.Shutdown()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestExporterStalledClientTimesOut(t *testing.T) {
	const slots = 60000

	b := NewBuilder("big", 0, slots+1)
	for i := 1; i <= slots; i++ {
		b.DeclareInt(i, fmt.Sprintf("slot_%05d", i))
	}
	r := NewRegistry(nil, WithWriteTimeout(200*time.Millisecond))
	r.Add(b.Finalize())

	var want bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&want))

	path := socketPath(t)
	require.NoError(t, r.Init(path))
	defer r.Shutdown()

	// connects and never reads
	stalled, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer stalled.Close()

	require.Eventually(t, func() bool {
		return r.State() == StateAccepting
	}, 2*time.Second, 5*time.Millisecond)

	got := readSnapshot(t, path)
	assert.Equal(t, want.Len(), len(got))
	assert.True(t, strings.HasSuffix(got, `"slot_60000" : 0,}`))
}

func TestExporterShutdownWhileServing(t *testing.T) {
	const slots = 60000

	b := NewBuilder("big", 0, slots+1)
	for i := 1; i <= slots; i++ {
		b.DeclareInt(i, fmt.Sprintf("slot_%05d", i))
	}
	r := NewRegistry(nil, WithWriteTimeout(0), WithStopTimeout(100*time.Millisecond))
	r.Add(b.Finalize())

	path := socketPath(t)
	require.NoError(t, r.Init(path))
	e := r.exporter

	stalled, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer stalled.Close()

	require.Eventually(t, func() bool {
		return r.State() == StateAccepting
	}, 2*time.Second, 5*time.Millisecond)

	// without a write deadline only the forced close can end the write
	r.Shutdown()
	assert.Equal(t, StateStopped, e.State())
	assert.False(t, r.Running())
}

func TestExporterStrictFormat(t *testing.T) {
	r := newSnapshotRegistry(t, WithFormat(FormatV2))
	path := socketPath(t)

	require.NoError(t, r.Init(path))
	defer r.Shutdown()

	assert.Equal(t,
		`{"ops" : { "count" : 2, "sum" : 5 },"avg_lat" : { "count" : 1, "sum" : 1.5 },"inodes" : 12}`,
		readSnapshot(t, path))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "accepting", StateAccepting.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
