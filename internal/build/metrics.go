package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks production build runs for the status endpoint.
type BuildMetrics struct {
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	totalDuration    time.Duration
	last             time.Time
	lastDuration     time.Duration
	lastStage        string
	lastError        string
	mutex            sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of BuildMetrics.
type MetricsSnapshot struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	AverageDuration  time.Duration `json:"average_duration"`
	LastBuild        time.Time     `json:"last_build,omitempty"`
	LastDuration     time.Duration `json:"last_duration"`
	LastFailedStage  string        `json:"last_failed_stage,omitempty"`
	LastError        string        `json:"last_error,omitempty"`
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records one pipeline run. stage is the failing stage, or
// empty on success.
func (bm *BuildMetrics) RecordBuild(duration time.Duration, stage string, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.totalBuilds++
	bm.totalDuration += duration
	bm.last = time.Now()
	bm.lastDuration = duration
	bm.lastStage = stage

	if err != nil {
		bm.failedBuilds++
		bm.lastError = err.Error()
	} else {
		bm.successfulBuilds++
		bm.lastError = ""
	}
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	s := MetricsSnapshot{
		TotalBuilds:      bm.totalBuilds,
		SuccessfulBuilds: bm.successfulBuilds,
		FailedBuilds:     bm.failedBuilds,
		LastBuild:        bm.last,
		LastDuration:     bm.lastDuration,
		LastFailedStage:  bm.lastStage,
		LastError:        bm.lastError,
	}
	if bm.totalBuilds > 0 {
		s.AverageDuration = bm.totalDuration / time.Duration(bm.totalBuilds)
	}
	return s
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.totalBuilds == 0 {
		return 0
	}

	return float64(bm.successfulBuilds) / float64(bm.totalBuilds) * 100
}
