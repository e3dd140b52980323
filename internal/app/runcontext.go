package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunContext is the immutable per-invocation context: the run's identity and
// the output locations every component writes under. It is constructed once
// and threaded through the engine rather than held as ambient state.
type RunContext struct {
	ID           string
	StartedAt    time.Time
	Dir          string
	PlotDir      string
	RSquaredDir  string
	WorkbookPath string
}

// NewRunContext creates the timestamped run directory tree under outputDir.
func NewRunContext(outputDir string) (RunContext, error) {
	started := time.Now()
	dir := filepath.Join(outputDir, started.Format("20060102_150405"))

	rc := RunContext{
		ID:           uuid.NewString(),
		StartedAt:    started,
		Dir:          dir,
		PlotDir:      filepath.Join(dir, "plots"),
		RSquaredDir:  filepath.Join(dir, "rsquared"),
		WorkbookPath: filepath.Join(dir, "CASSOutput.xlsx"),
	}

	for _, d := range []string{rc.Dir, rc.PlotDir, rc.RSquaredDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return RunContext{}, fmt.Errorf("creating run directory: %w", err)
		}
	}
	return rc, nil
}
