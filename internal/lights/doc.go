// Package lights implements the single-writer state core: the store holding
// the current value of each light, batch validation for inbound mutations,
// and change detection for the periodic broadcast sampler.
package lights
