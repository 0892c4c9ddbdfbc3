// Package notify runs the side effects that follow a successful save.
//
// Dispatcher forwards activity events to a storage.ActivitySink on a worker
// pool so that slow or failing sinks never delay or fail a save. Throttle
// limits how often a keyed action runs, firing on the leading edge and once
// more on the trailing edge of each window. FileBackupSink writes
// timestamped full-conversation copies into a backup directory.
package notify
