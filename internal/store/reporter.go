package store

import (
	appLog "days/internal/log"
)

// Reporter receives corruption that Load absorbed instead of returning.
type Reporter interface {
	ReportCorruption(err *StorageCorruptionError)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err *StorageCorruptionError)

func (f ReporterFunc) ReportCorruption(err *StorageCorruptionError) { f(err) }

// LogReporter writes corruption reports to the application log.
type LogReporter struct{}

func (LogReporter) ReportCorruption(err *StorageCorruptionError) {
	appLog.Error("event store corruption", err, "key", err.Key, "index", err.Index)
}
