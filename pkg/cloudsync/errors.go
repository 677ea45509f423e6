package cloudsync

import "errors"

var (
	ErrProviderNotFound = errors.New("cloudsync: no cloud provider configured")
	ErrSyncDisabled     = errors.New("cloudsync: sync is disabled")
	ErrNoRemoteBackup   = errors.New("cloudsync: no backup found in cloud")
)
