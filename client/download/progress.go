package download

import (
	"fmt"
	"log/slog"
	"time"
)

// progressLogger logs coverage growth at most once per second, and
// once more when the blob is complete.
type progressLogger struct {
	logger    *slog.Logger
	total     int64
	covered   int64
	fetched   int64
	startTime time.Time
	lastLog   time.Time
}

func newProgressLogger(logger *slog.Logger, total int64) *progressLogger {
	return &progressLogger{
		logger:    logger,
		total:     total,
		startTime: time.Now(),
	}
}

// update records n transferred bytes and the resulting coverage.
func (pl *progressLogger) update(n int, covered int64) {
	pl.fetched += int64(n)
	pl.covered = covered

	if pl.covered == pl.total {
		pl.log("download complete")
		return
	}

	if time.Since(pl.lastLog) >= time.Second {
		pl.lastLog = time.Now()
		pl.log("downloading")
	}
}

func (pl *progressLogger) log(msg string) {
	elapsed := time.Since(pl.startTime)

	pct := 100.0
	if pl.total > 0 {
		pct = float64(pl.covered) / float64(pl.total) * 100
	}

	attrs := []any{
		"progress", fmt.Sprintf("%.1f%%", pct),
		"elapsed", elapsed.Round(time.Millisecond),
		"covered", pl.covered,
		"fetched", pl.fetched,
		"total", pl.total,
		"mbps", fmt.Sprintf("%.2f", float64(pl.fetched)/elapsed.Seconds()/(1024*1024)),
	}
	pl.logger.Info(msg, attrs...)
}
