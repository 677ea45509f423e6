package cloudsync

import (
	"errors"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/cloud"
)

// Result summarizes how a run ended.
type Result int

const (
	ResultSuccess Result = iota
	ResultUpToDate
	ResultProviderNotFound
	ResultAuthenticationFailed
	ResultNetworkError
	ResultNoRemoteBackup
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultUpToDate:
		return "up_to_date"
	case ResultProviderNotFound:
		return "provider_not_found"
	case ResultAuthenticationFailed:
		return "authentication_failed"
	case ResultNetworkError:
		return "network_error"
	case ResultNoRemoteBackup:
		return "no_remote_backup"
	default:
		return "error"
	}
}

// OK reports whether the run finished without error.
func (r Result) OK() bool {
	return r == ResultSuccess || r == ResultUpToDate
}

func resultOf(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrProviderNotFound), errors.Is(err, ErrSyncDisabled):
		return ResultProviderNotFound
	case errors.Is(err, ErrNoRemoteBackup):
		return ResultNoRemoteBackup
	case errors.Is(err, cloud.ErrAuthentication):
		return ResultAuthenticationFailed
	case errors.Is(err, cloud.ErrNetwork):
		return ResultNetworkError
	default:
		return ResultError
	}
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Event is a progress notification.
type Event struct {
	Status  Status
	Message string
	Time    time.Time
	Err     error
}

// Direction names the transfer a run performed.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Report describes the last finished run.
type Report struct {
	Result    Result
	Direction Direction
	Provider  string
	Added     int
	Finished  time.Time
	Err       error
}
