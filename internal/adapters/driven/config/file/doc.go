// Package file loads the sync core's configuration from a TOML file, with
// environment overrides and an optional fsnotify watcher that re-applies
// tunables when the file changes on disk.
package file
