// Package driven defines the interfaces the core depends on. Adapters
// implement these; the core never imports an adapter package.
package driven
