// Package domain holds the core model: lights, snapshots, mutation results
// and the interfaces the adapters implement. It has no dependencies on the
// transport or storage layers.
package domain
