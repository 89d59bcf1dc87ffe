//go:build linux

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ja7ad/proctop/pkg/system/cgroup"
	"github.com/ja7ad/proctop/pkg/system/proc"
	"github.com/ja7ad/proctop/pkg/system/socket"
	"github.com/ja7ad/proctop/pkg/system/util"
	"github.com/ja7ad/proctop/pkg/types"
)

// Scanner runs the snapshot pipeline: a two-phase CPU-delta sample
// around one mandatory sleep, joined with memory, disk, socket and
// cgroup state into scrape-ready rows. A Scanner is safe for concurrent
// use, but scrapes themselves are serialized — a second Scan while one
// is sampling returns ErrScrapeInProgress instead of racing for the
// same sampling window.
type Scanner struct {
	opts  Options
	fs    proc.FS
	users *UserCache

	scanMu sync.Mutex // at-most-one concurrent scrape

	lastMu sync.Mutex
	last   *Result

	// betweenPhases runs after the sampling sleep, before the T2 reads.
	// Tests use it to mutate a synthetic tree; nil otherwise.
	betweenPhases func()

	now func() time.Time
}

// New builds a Scanner. A nil users cache gets a fresh one; tests pass
// their own to control lookups.
func New(opts Options, users *UserCache) *Scanner {
	opts = opts.withDefaults()
	if users == nil {
		users = NewUserCache()
	}
	return &Scanner{
		opts:  opts,
		fs:    proc.NewFS(opts.ProcRoot),
		users: users,
		now:   time.Now,
	}
}

// Last returns the most recent successful result, or nil before the
// first scrape. Callers use it as a degraded response when a scrape
// fails outright.
func (s *Scanner) Last() *Result {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

// Restore seeds Last with a previously persisted result, typically
// loaded from the cache file at startup.
func (s *Scanner) Restore(res *Result) {
	if res == nil {
		return
	}
	s.lastMu.Lock()
	s.last = res
	s.lastMu.Unlock()
}

// sample is the transient per-PID record, discarded at scrape end.
type sample struct {
	pid        int
	uid        int
	comm       string
	rssKB      uint64
	ticksT1    uint64
	ticksT2    uint64
	startTicks uint64
	readBytes  uint64
	writeBytes uint64
	cg         cgroup.Info
	ports      []int
}

// Scan performs one full scrape.
//
// The sleep between the two tick samples is a scheduling requirement,
// not an optimization: delta-based CPU% is meaningless at zero elapsed
// time. If ctx expires mid-scrape, Scan aborts cleanly and returns the
// rows that were fully built, marked Partial, together with ctx's
// error.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScrapeInProgress
	}
	defer s.scanMu.Unlock()

	pids, err := s.fs.Pids(s.opts.MaxProcs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcUnreadable, err)
	}

	stats := s.fs.SystemStats()
	ver := cgroup.DetectVersion(s.opts.CgroupMount)

	// The socket table is built before any per-process resolution so
	// every PID correlates against the same snapshot of the table.
	table := socket.BuildTable(s.opts.ProcRoot)

	// Phase 1: cumulative ticks per PID plus the aggregate tick total.
	totalT1 := stats.TotalTicks
	t1 := make(map[int]uint64, len(pids))
	for _, pid := range pids {
		if st, err := s.fs.Stat(pid); err == nil {
			t1[pid] = st.Ticks
		}
	}

	select {
	case <-ctx.Done():
		return &Result{TakenAt: s.now(), Partial: true}, ctx.Err()
	case <-time.After(s.opts.Interval):
	}

	if s.betweenPhases != nil {
		s.betweenPhases()
	}

	// Phase 2: re-read the aggregate total, then every surviving PID.
	totalT2, err := s.fs.TotalCPUTicks()
	if err != nil {
		totalT2 = totalT1 // fail soft: zero delta, CPU% reads 0
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		samples = make([]*sample, 0, len(t1))
		sem     = make(chan struct{}, s.opts.Workers)
		partial bool
	)
	for _, pid := range pids {
		prev, ok := t1[pid]
		if !ok {
			continue // spawned after T1; no delta to compute
		}
		if ctx.Err() != nil {
			partial = true
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(pid int, prev uint64) {
			defer wg.Done()
			defer func() { <-sem }()
			if sm := s.collect(pid, prev, ver, table); sm != nil {
				mu.Lock()
				samples = append(samples, sm)
				mu.Unlock()
			}
		}(pid, prev)
	}
	wg.Wait()

	rows := s.buildRows(samples, stats, totalT1, totalT2)
	sort.Slice(rows, func(i, j int) bool { return rows[i].PID < rows[j].PID })

	res := &Result{TakenAt: s.now(), Rows: rows, Partial: partial}
	s.lastMu.Lock()
	s.last = res
	s.lastMu.Unlock()

	// Best-effort diagnostics cache; never surfaced to the consumer.
	if s.opts.CacheFile != "" {
		if err := WriteCache(s.opts.CacheFile, res); err != nil {
			slog.Warn("snapshot cache write failed", "path", s.opts.CacheFile, "err", err)
		}
	}

	if partial {
		return res, ctx.Err()
	}
	return res, nil
}

// collect gathers all T2 state for one PID. A nil return means the
// process exited mid-scan or its stat record was malformed; either way
// the row is skipped, not an error.
func (s *Scanner) collect(pid int, prevTicks uint64, ver cgroup.Version, table socket.Table) *sample {
	st, err := s.fs.Stat(pid)
	if err != nil {
		return nil
	}
	sm := &sample{
		pid:        pid,
		uid:        -1,
		comm:       st.Comm,
		ticksT1:    prevTicks,
		ticksT2:    st.Ticks,
		startTicks: st.StartTicks,
	}
	if uid, err := s.fs.UID(pid); err == nil {
		sm.uid = uid
	}
	if rss, err := s.fs.RSSKB(pid); err == nil {
		sm.rssKB = rss
	}
	if s.opts.DiskIO {
		// Restricted io files (no CAP_SYS_PTRACE) default to zero.
		if r, w, err := s.fs.IO(pid); err == nil {
			sm.readBytes, sm.writeBytes = r, w
		}
	}
	sm.cg = cgroup.Classify(s.fs.CgroupFile(pid), ver)
	sm.ports = socket.Ports(s.opts.ProcRoot, pid, table)
	return sm
}

// buildRows applies the CPU-delta math, the PID-reuse exclusion and the
// zero-activity filter, and joins everything into Rows.
func (s *Scanner) buildRows(samples []*sample, stats proc.SystemStats, totalT1, totalT2 uint64) []Row {
	totalDelta := float64(int64(totalT2) - int64(totalT1))
	nowUnix := s.now().Unix()

	rows := make([]Row, 0, len(samples))
	for _, sm := range samples {
		if sm.ticksT2 < sm.ticksT1 {
			continue // PID reused by a different process between samples
		}
		delta := float64(sm.ticksT2 - sm.ticksT1)
		cpuPct := util.Round2(util.Clamp0(
			util.SafeDiv(delta*float64(stats.NumCores)*100, totalDelta)))
		memPct := util.Round2(
			util.SafeDiv(float64(sm.rssKB)*100, float64(stats.MemTotalKB)))

		// Keep idle-but-resident processes; drop pure noise (kernel
		// threads, zombies) from the top-N pool.
		if cpuPct == 0 && sm.rssKB == 0 && sm.readBytes == 0 && sm.writeBytes == 0 {
			continue
		}

		uptime := nowUnix - stats.BootTime - int64(sm.startTicks)/int64(stats.ClockTick)
		if uptime < 0 {
			uptime = 0
		}

		user := "unknown"
		if sm.uid >= 0 {
			user = s.users.Lookup(sm.uid)
		}

		rows = append(rows, Row{
			PID:            sm.pid,
			UID:            sm.uid,
			User:           user,
			CPUPct:         cpuPct,
			MemPct:         memPct,
			RSSKB:          sm.rssKB,
			UptimeSec:      uptime,
			Command:        sm.comm,
			DiskReadBytes:  types.ToBytes(sm.readBytes),
			DiskWriteBytes: types.ToBytes(sm.writeBytes),
			Ports:          sm.ports,
			CgroupPath:     sm.cg.Path,
			CgroupVersion:  sm.cg.Version.String(),
			Runtime:        sm.cg.Runtime,
			ContainerID:    sm.cg.ContainerID,
			Node:           s.opts.Node,
		})
	}
	return rows
}
