package snapshot

import (
	"strconv"
	"strings"
	"time"

	"github.com/ja7ad/proctop/pkg/system/cgroup"
	"github.com/ja7ad/proctop/pkg/types"
)

// Row is the fully-joined, scrape-ready record for one live process.
// Field order and presence are stable across scrapes (fields are
// emitted even when empty); this is the sole contract handed to the
// exposition layer.
type Row struct {
	PID            int            `json:"pid"`
	UID            int            `json:"uid"`
	User           string         `json:"user"`
	CPUPct         float64        `json:"cpu_pct"`
	MemPct         float64        `json:"mem_pct"`
	RSSKB          uint64         `json:"rss_kb"`
	UptimeSec      int64          `json:"uptime_sec"`
	Command        string         `json:"command"`
	DiskReadBytes  types.Bytes    `json:"disk_read_bytes"`
	DiskWriteBytes types.Bytes    `json:"disk_write_bytes"`
	Ports          []int          `json:"ports"`
	CgroupPath     string         `json:"cgroup_path"`
	CgroupVersion  string         `json:"cgroup_version"`
	Runtime        cgroup.Runtime `json:"container_runtime"`
	ContainerID    string         `json:"container_id"`
	Rank           int            `json:"rank"`
	Node           string         `json:"node"`
}

// PortsString renders Ports as a comma-joined label value, empty when
// the process holds no listening sockets.
func (r Row) PortsString() string {
	if len(r.Ports) == 0 {
		return ""
	}
	parts := make([]string, len(r.Ports))
	for i, p := range r.Ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// Result is one scrape's worth of rows. Partial marks a scrape that was
// cut short by its deadline; the rows it does carry are fully built.
type Result struct {
	TakenAt time.Time `json:"taken_at"`
	Rows    []Row     `json:"rows"`
	Partial bool      `json:"partial,omitempty"`
}

// Options is the configuration surface the engine consumes. Zero values
// take defaults (see withDefaults); a Scanner copies its Options at
// construction and never mutates them.
type Options struct {
	ProcRoot    string        // process filesystem root
	CgroupMount string        // cgroup mount point for version detection
	Interval    time.Duration // sleep between the T1/T2 tick samples
	MaxProcs    int           // cap on PIDs enumerated per scrape
	TopN        int           // rows returned per ranking
	DiskIO      bool          // collect per-process disk I/O counters
	Workers     int           // parallel per-process readers at T2
	CacheFile   string        // optional last-good-snapshot file, "" disables
	Node        string        // node name stamped on every row
}

func (o Options) withDefaults() Options {
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.CgroupMount == "" {
		o.CgroupMount = "/sys/fs/cgroup"
	}
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.MaxProcs <= 0 {
		o.MaxProcs = 2000
	}
	if o.TopN <= 0 {
		o.TopN = 50
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	return o
}
