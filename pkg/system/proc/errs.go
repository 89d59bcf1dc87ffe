package proc

import "errors"

var (
	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoUID indicates that /proc/<pid>/status had no Uid line.
	ErrNoUID = errors.New("proc: no uid line")

	// ErrNoRSS indicates that resident set size could not be determined from statm.
	ErrNoRSS = errors.New("proc: no rss")

	// ErrNoCPU indicates that /proc/stat had no aggregate CPU line.
	ErrNoCPU = errors.New("proc: no cpu line")
)
