package snapshot

import "errors"

var (
	// ErrScrapeInProgress indicates that Scan was called while another
	// scrape was still sampling. Scrapes are not reentrant: two
	// concurrent sleeps would contend for the same T1/T2 window.
	ErrScrapeInProgress = errors.New("snapshot: scrape already in progress")

	// ErrProcUnreadable indicates the process filesystem root could not
	// be enumerated at all. This is the one scrape-fatal fault; callers
	// may serve the previous cached snapshot as a degraded response.
	ErrProcUnreadable = errors.New("snapshot: process filesystem unreadable")
)
