package notify

import "errors"

var (
	// ErrActivitySinkRequired is returned when an activity sink is not provided.
	ErrActivitySinkRequired = errors.New("activity sink required")

	// ErrInvalidInterval is returned when a throttle interval is not positive.
	ErrInvalidInterval = errors.New("throttle interval must be positive")

	// ErrBackupNameRequired is returned when a backup has no conversation name.
	ErrBackupNameRequired = errors.New("backup name required")
)
