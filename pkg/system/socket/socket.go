//go:build linux

package socket

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Proto is the socket protocol family of a table entry.
type Proto string

const (
	TCP Proto = "tcp"
	UDP Proto = "udp"
)

// Entry is one row of the kernel socket table: an inode bound to a
// local port. Entries are immutable for the lifetime of a scrape.
type Entry struct {
	Inode uint64
	Port  int
	Proto Proto
}

// Table maps socket inode to its entry. Built once per scrape so port
// resolution costs O(sockets), not O(processes × sockets).
type Table map[uint64]Entry

// tcpListen is the hex connection-state code for TCP LISTEN.
const tcpListen = "0A"

// BuildTable parses the per-protocol socket tables under
// <procRoot>/net. TCP variants keep only rows in LISTEN state; UDP has
// no listening-state concept, so all UDP rows are kept. Missing tables
// (e.g. IPv6 disabled) are skipped silently.
func BuildTable(procRoot string) Table {
	if procRoot == "" {
		procRoot = "/proc"
	}
	t := make(Table)
	for _, f := range []struct {
		name       string
		proto      Proto
		listenOnly bool
	}{
		{"tcp", TCP, true},
		{"tcp6", TCP, true},
		{"udp", UDP, false},
		{"udp6", UDP, false},
	} {
		parseTable(filepath.Join(procRoot, "net", f.name), f.proto, f.listenOnly, t)
	}
	return t
}

// parseTable reads one socket table file into t. The format is
// fixed-column: local_address is field 1 as hexaddr:hexport, the
// connection state is field 3, and the inode is field 9.
func parseTable(path string, proto Proto, listenOnly bool, t Table) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Scan() // header
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}
		if listenOnly && fields[3] != tcpListen {
			continue
		}
		inode, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil || inode == 0 {
			continue
		}
		i := strings.LastIndex(fields[1], ":")
		if i < 0 {
			continue
		}
		port, err := strconv.ParseUint(fields[1][i+1:], 16, 64)
		if err != nil {
			continue
		}
		t[inode] = Entry{Inode: inode, Port: int(port & 0xFFFF), Proto: proto}
	}
}

// Ports resolves the listening ports of one process by walking its fd
// symlinks and matching `socket:[inode]` targets against the table.
// A process with no matching inode yields an empty slice, never an
// error; an unreadable fd directory does the same.
func Ports(procRoot string, pid int, t Table) []int {
	ports := []int{}
	if procRoot == "" {
		procRoot = "/proc"
	}
	fdDir := filepath.Join(procRoot, strconv.Itoa(pid), "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return ports
	}

	seen := make(map[int]struct{})
	for _, e := range entries {
		link, err := os.Readlink(filepath.Join(fdDir, e.Name()))
		if err != nil {
			continue
		}
		if !strings.HasPrefix(link, "socket:[") || !strings.HasSuffix(link, "]") {
			continue
		}
		inode, err := strconv.ParseUint(link[8:len(link)-1], 10, 64)
		if err != nil {
			continue
		}
		if entry, ok := t[inode]; ok {
			seen[entry.Port] = struct{}{}
		}
	}
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}
