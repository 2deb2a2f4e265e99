// Package app wires the state core to its collaborators: it serializes
// mutation ingestion against broadcasting and handles startup rehydration
// and write-behind persistence.
package app
