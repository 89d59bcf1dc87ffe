// Package proc provides lightweight, zero-dependency readers for the
// Linux process filesystem. It is the lowest layer of the snapshot
// pipeline (see pkg/snapshot): everything here is a point-in-time read
// with no retained state.
//
// The FS handle takes a configurable root so the whole package can be
// exercised against a synthetic tree in tests, or against a host's
// /proc bind-mounted into a container (e.g. /host/proc).
//
// Error discipline: per-PID readers return plain errors for callers to
// treat as "skip this process" — a PID vanishing mid-scan is expected,
// not exceptional. Only an unreadable root (Pids) is scrape-fatal.
// System-wide reads (SystemStats) fail soft with safe defaults instead,
// so downstream arithmetic never divides by zero.
package proc
