//go:build linux

package proc

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemStats is the host-wide state a scrape needs. All fields are read
// once per scrape except TotalTicks, which is re-read at both ends of the
// sampling window via TotalCPUTicks.
type SystemStats struct {
	ClockTick  int    // jiffies per second
	BootTime   int64  // seconds since the epoch
	MemTotalKB uint64 // MemTotal from meminfo
	NumCores   int    // number of cpuN lines in stat
	TotalTicks uint64 // aggregate cpu line, all fields summed
}

// SystemStats reads boot time, core count and the aggregate tick total
// from <root>/stat, and total memory from <root>/meminfo.
//
// It fails soft: any unreadable field keeps a safe default (1 for values
// used as divisors, 0 otherwise) so downstream arithmetic never divides
// by zero.
func (fs FS) SystemStats() SystemStats {
	st := SystemStats{
		ClockTick: ClockTicks(),
		NumCores:  1,
	}

	if f, err := os.Open(fs.path("stat")); err == nil {
		cores := 0
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			fields := strings.Fields(sc.Text())
			if len(fields) < 2 {
				continue
			}
			switch {
			case fields[0] == "cpu":
				st.TotalTicks = sumTicks(fields[1:])
			case strings.HasPrefix(fields[0], "cpu"):
				cores++
			case fields[0] == "btime":
				st.BootTime, _ = strconv.ParseInt(fields[1], 10, 64)
			}
		}
		_ = f.Close()
		if cores > 0 {
			st.NumCores = cores
		} else {
			st.NumCores = runtime.NumCPU()
		}
	} else {
		st.NumCores = runtime.NumCPU()
	}

	if f, err := os.Open(fs.path("meminfo")); err == nil {
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "MemTotal:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					st.MemTotalKB, _ = strconv.ParseUint(fields[1], 10, 64)
				}
				break
			}
		}
		_ = f.Close()
	}

	return st
}

// TotalCPUTicks returns the sum of all fields of the aggregate cpu line
// in <root>/stat. Deltas of this value bound per-process CPU%.
func (fs FS) TotalCPUTicks() (uint64, error) {
	f, err := os.Open(fs.path("stat"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 1 && fields[0] == "cpu" {
			return sumTicks(fields[1:]), nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrNoCPU
}

func sumTicks(fields []string) uint64 {
	var total uint64
	for _, s := range fields {
		v, _ := strconv.ParseUint(s, 10, 64)
		total += v
	}
	return total
}
