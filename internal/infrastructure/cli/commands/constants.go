package commands

import "time"

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable"
	ErrMaintenanceUnsupported   = "history backend does not support export or retention"
	ErrInvalidRetainDays        = "--days must be > 0"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgNoLogRecords       = "No log records."
)

// Defaults
const (
	DefaultLogLines      = 50
	defaultStatsSample   = 500
	logPollInterval      = 250 * time.Millisecond
	serverShutdownWindow = 5 * time.Second
)
