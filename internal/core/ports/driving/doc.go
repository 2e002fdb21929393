// Package driving defines the interfaces through which embedding
// applications drive the core: the record façade and the sync status signal.
package driving
