package lights

import "github.com/SJang1/traffic-light-websocket/internal/domain"

// Changed reports whether the observable state differs between two snapshots.
// Only status and distance count: timestamps and the subscriber count are
// excluded, otherwise the periodic sampler would broadcast on every tick.
func Changed(prev, cur domain.Snapshot) bool {
	if len(prev.Lights) != len(cur.Lights) {
		return true
	}
	for id, c := range cur.Lights {
		p, ok := prev.Lights[id]
		if !ok || p.Status != c.Status || p.Distance != c.Distance {
			return true
		}
	}
	return false
}
