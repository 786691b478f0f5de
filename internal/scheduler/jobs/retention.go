package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// ReportRetentionJob removes report files older than the retention window
type ReportRetentionJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewReportRetentionJob creates a retention job. retention <= 0 keeps everything.
func NewReportRetentionJob(dir string, retention time.Duration, log *logger.Logger) *ReportRetentionJob {
	return &ReportRetentionJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    log.WithComponent("report_retention"),
	}
}

// Name returns the job name
func (j *ReportRetentionJob) Name() string {
	return "report_retention"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *ReportRetentionJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run deletes expired reports. The date comes from the file name
// (YYYY-MM-DD_Weekday.ext); other files are left alone.
func (j *ReportRetentionJob) Run(ctx context.Context) error {
	if j.retention <= 0 || j.dir == "" {
		return nil
	}
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return nil
	}

	cutoff := contracts.TruncateDate(j.now().Add(-j.retention))
	removed := 0

	err := filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		date, ok := reportDate(d.Name())
		if !ok || !date.Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("report retention failed: %w", err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format(contracts.DateLayout),
		}).Info("Expired reports removed")
	}
	return nil
}

func reportDate(name string) (time.Time, bool) {
	ext := filepath.Ext(name)
	if ext != ".md" && ext != ".json" {
		return time.Time{}, false
	}
	datePart, _, found := strings.Cut(strings.TrimSuffix(name, ext), "_")
	if !found {
		return time.Time{}, false
	}
	date, err := time.Parse(contracts.DateLayout, datePart)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
