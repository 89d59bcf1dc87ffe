//go:build linux

package socket

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tcpFixture = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 9001 1 0000000000000000 100 0 0 10 0
   1: 0100007F:0016 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 9002 1 0000000000000000 100 0 0 10 0
   2: 0100007F:A2C8 0100007F:1F90 01 00000000:00000000 00:00000000 00000000  1000        0 9003 1 0000000000000000 20 4 30 10 -1
`

const udpFixture = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops
  100: 00000000:0035 00000000:0000 07 00000000:00000000 00:00000000 00000000   102        0 9100 2 0000000000000000 0
`

const tcp6Fixture = `  sl  local_address                         remote_address                        st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000000000000000000000000000:22B8 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 9200 1 0000000000000000 100 0 0 10 0
`

func writeNet(t *testing.T, root string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net"), 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, "net", name), []byte(content), 0o644))
	}
}

func TestBuildTable(t *testing.T) {
	root := t.TempDir()
	writeNet(t, root, map[string]string{
		"tcp":  tcpFixture,
		"tcp6": tcp6Fixture,
		"udp":  udpFixture,
	})

	table := BuildTable(root)

	// TCP LISTEN rows are kept; the ESTABLISHED row (inode 9003) is not.
	require.Contains(t, table, uint64(9001))
	assert.Equal(t, 8080, table[9001].Port) // 0x1F90
	assert.Equal(t, TCP, table[9001].Proto)

	require.Contains(t, table, uint64(9002))
	assert.Equal(t, 22, table[9002].Port) // 0x0016

	assert.NotContains(t, table, uint64(9003))

	// UDP has no listening state; all rows kept.
	require.Contains(t, table, uint64(9100))
	assert.Equal(t, 53, table[9100].Port) // 0x0035
	assert.Equal(t, UDP, table[9100].Proto)

	// IPv6 local address is longer but the port parse is identical.
	require.Contains(t, table, uint64(9200))
	assert.Equal(t, 8888, table[9200].Port) // 0x22B8
}

func TestBuildTable_MissingTables(t *testing.T) {
	root := t.TempDir()
	writeNet(t, root, map[string]string{"tcp": tcpFixture}) // no tcp6/udp/udp6

	table := BuildTable(root)
	assert.Len(t, table, 2)
}

func TestPorts(t *testing.T) {
	root := t.TempDir()
	writeNet(t, root, map[string]string{"tcp": tcpFixture})

	fdDir := filepath.Join(root, "777", "fd")
	require.NoError(t, os.MkdirAll(fdDir, 0o755))
	require.NoError(t, os.Symlink("socket:[9001]", filepath.Join(fdDir, "3")))
	require.NoError(t, os.Symlink("socket:[9002]", filepath.Join(fdDir, "4")))
	require.NoError(t, os.Symlink("socket:[9001]", filepath.Join(fdDir, "5"))) // dup inode
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(fdDir, "0")))
	require.NoError(t, os.Symlink("socket:[424242]", filepath.Join(fdDir, "6"))) // not in table

	table := BuildTable(root)
	ports := Ports(root, 777, table)
	assert.Equal(t, []int{22, 8080}, ports)
}

func TestPorts_NoSockets(t *testing.T) {
	root := t.TempDir()
	writeNet(t, root, map[string]string{"tcp": tcpFixture})
	table := BuildTable(root)

	// missing fd dir is not an error; the result stays a non-nil empty
	// slice so downstream encoding renders [] rather than null
	got := Ports(root, 888, table)
	require.NotNil(t, got)
	assert.Empty(t, got)

	fdDir := filepath.Join(root, "889", "fd")
	require.NoError(t, os.MkdirAll(fdDir, 0o755))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(fdDir, "0")))
	got = Ports(root, 889, table)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPorts_Live_Self(t *testing.T) {
	// Smoke: walking our own fds must never error or panic.
	table := BuildTable("")
	_ = Ports("", os.Getpid(), table)
	_ = strconv.Itoa(len(table))
}
