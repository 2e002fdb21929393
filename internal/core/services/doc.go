// Package services holds the core sync logic: the record façade with its
// time-boxed cache, the offline write queue, and the sync status signal.
// Everything here depends only on the driven ports, so the whole package is
// testable with a fake transport and a fake clock.
package services
