// Package broadcast implements the websocket fan-out using the actor pattern.
//
// The Broadcaster samples the light store on a tick and pushes to connected
// subscribers when status or distance changed; accepted mutations push
// unconditionally. Single goroutine + command channel (no mutexes);
// per-connection write goroutines absorb slow clients, which are evicted
// rather than awaited.
package broadcast
