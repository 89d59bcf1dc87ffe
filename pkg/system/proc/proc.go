//go:build linux

package proc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FS is a handle to a process filesystem root. The zero value is not
// usable; call NewFS. Pointing it somewhere other than /proc lets tests
// run against a synthetic tree.
type FS struct {
	root string
}

// NewFS returns a handle rooted at root, defaulting to /proc when empty.
func NewFS(root string) FS {
	if root == "" {
		root = "/proc"
	}
	return FS{root: root}
}

// Root returns the filesystem root this handle reads from.
func (fs FS) Root() string { return fs.root }

func (fs FS) path(elem ...string) string {
	return filepath.Join(append([]string{fs.root}, elem...)...)
}

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: On real systems, the authoritative way is `sysconf(_SC_CLK_TCK)`,
// but calling that requires cgo. For portability in a pure-Go library,
// this simplified approach is acceptable.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the system memory page size in bytes.
// Like ClockTicks, it first checks an env override (PAGE_SIZE)
// to ease testing, then falls back to os.Getpagesize().
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// Pids enumerates the numeric directory entries under the root, sorted
// ascending. When max > 0 enumeration stops after max PIDs to bound
// scan latency on hosts with very large process counts.
//
// An unreadable root is the one scrape-fatal condition in this package;
// everything per-PID fails soft.
func (fs FS) Pids(max int) ([]int, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("proc: read %s: %w", fs.root, err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
		if max > 0 && len(pids) >= max {
			break
		}
	}
	sort.Ints(pids)
	return pids, nil
}

//
// Per-PID readers
//

// Stat holds the fields we need from /proc/<pid>/stat.
type Stat struct {
	Comm       string // command name without the surrounding parens
	Ticks      uint64 // utime + stime, cumulative jiffies
	StartTicks uint64 // starttime, jiffies after boot
}

// Stat parses /proc/<pid>/stat.
//
// Caveats:
//   - comm (2nd field) is in parens and may contain spaces or embedded
//     parens. Everything before the last ") " is pid + comm, so we strip
//     from the right, never the left.
//   - Returns monotonic uint64 counters; utime is field 14, stime 15,
//     starttime 22 (1-based overall).
func (fs FS) Stat(pid int) (Stat, error) {
	b, err := os.ReadFile(fs.path(strconv.Itoa(pid), "stat"))
	if err != nil {
		return Stat{}, err
	}
	line := strings.TrimSpace(string(b))
	if line == "" {
		return Stat{}, ErrNoStat
	}

	open := strings.Index(line, "(")
	end := strings.LastIndex(line, ") ")
	if open < 0 || end < open {
		return Stat{}, ErrNoStat
	}
	comm := line[open+1 : end]
	fields := strings.Fields(line[end+2:])

	get := func(idx int) (uint64, error) {
		if idx >= len(fields) {
			return 0, ErrShortStat
		}
		return strconv.ParseUint(fields[idx], 10, 64)
	}

	// Indexes relative to the post-comm fields slice:
	// utime (14th overall) => fields[11]
	// stime (15th overall) => fields[12]
	// starttime (22nd overall) => fields[19]
	utime, err := get(11)
	if err != nil {
		return Stat{}, err
	}
	stime, err := get(12)
	if err != nil {
		return Stat{}, err
	}
	start, err := get(19)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Comm: comm, Ticks: utime + stime, StartTicks: start}, nil
}

// UID returns the real owner UID from /proc/<pid>/status (Uid line,
// first value).
func (fs FS) UID(pid int) (int, error) {
	f, err := os.Open(fs.path(strconv.Itoa(pid), "status"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, ErrNoUID
		}
		return strconv.Atoi(fields[1])
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrNoUID
}

// RSSKB returns the resident set size in kilobytes from /proc/<pid>/statm
// (resident page count × page size).
func (fs FS) RSSKB(pid int) (uint64, error) {
	b, err := os.ReadFile(fs.path(strconv.Itoa(pid), "statm"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 2 {
		return 0, ErrNoRSS
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, ErrNoRSS
	}
	return pages * uint64(PageSize()) / 1024, nil
}

// IO reads /proc/<pid>/io and returns read_bytes and write_bytes.
// These counters are monotonic and in bytes.
//
// The file is absent for kernel threads and unreadable for other users'
// processes without CAP_SYS_PTRACE; callers treat that as zero, not an
// error worth reporting.
func (fs FS) IO(pid int) (readBytes, writeBytes uint64, err error) {
	f, err := os.Open(fs.path(strconv.Itoa(pid), "io"))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "read_bytes:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "read_bytes:"))
			readBytes, _ = strconv.ParseUint(v, 10, 64)
		} else if strings.HasPrefix(line, "write_bytes:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "write_bytes:"))
			writeBytes, _ = strconv.ParseUint(v, 10, 64)
		}
	}
	return readBytes, writeBytes, sc.Err()
}

// CgroupFile returns the raw contents of /proc/<pid>/cgroup for the
// classifier. Missing or unreadable files yield an empty string.
func (fs FS) CgroupFile(pid int) string {
	b, err := os.ReadFile(fs.path(strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return ""
	}
	return string(b)
}
