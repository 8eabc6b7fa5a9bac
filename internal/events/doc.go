// Package events defines the events the reconciler emits and the ways they
// leave the process.
//
// An Event is a trigger name plus a flat payload map. Dispatchers deliver
// events (HTTP bus, local journal, in-process appliers, fan-out over
// several). History answers "was an identical event emitted recently?" and
// backs the Deduplicator, which guards the warning triggers that would
// otherwise repeat on every poll.
package events
