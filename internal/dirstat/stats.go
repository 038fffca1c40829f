package dirstat

import (
	"sync"
	"time"
)

// Stats holds aggregate statistics for a directory walk.
type Stats struct {
	// Path is the traversal root that was measured.
	Path string `json:"path"`
	// FileCount is the number of regular files counted.
	FileCount int64 `json:"file_count"`
	// TotalBytes is the cumulative size of all counted files.
	TotalBytes int64 `json:"total_bytes"`
	// Elapsed is the total time taken for the walk.
	Elapsed time.Duration `json:"elapsed"`
}

// Options configures a measurement.
type Options struct {
	// Path is the directory to measure.
	Path string
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
}

// collector accumulates file sizes. The walk writes to it while the progress
// reporter reads from another goroutine, hence the mutex.
type collector struct {
	mu         sync.Mutex
	fileCount  int64
	totalBytes int64
}

func (c *collector) add(size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fileCount++
	c.totalBytes += size
}

func (c *collector) snapshot() (int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fileCount, c.totalBytes
}

// finalize produces the final Stats from the collected data.
func (c *collector) finalize(path string) *Stats {
	files, bytes := c.snapshot()

	return &Stats{
		Path:       path,
		FileCount:  files,
		TotalBytes: bytes,
	}
}
