package metrics

import "time"

//go:generate mockgen -source=recorder.go -destination=mocks/mock_recorder.go -package=mocks

// Recorder is what the scheduler, watcher and reload hub report to.
type Recorder interface {
	ObserveTask(task, status string, duration time.Duration)
	IncWatchEvent(kind, ext string)
	IncReload(channel string)
	IncCoalesced(task string)
}
