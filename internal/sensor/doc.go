// Package sensor reconciles sequencing run directories on disk with the run
// registry.
//
// Each Poll takes a snapshot of the registry, walks the watched roots for new
// and relocated runs, re-checks every registered run for state and sample
// sheet changes, and finally scans ready runs on analysis platforms for new
// analysis directories. Differences leave the process as events; the sensor
// never writes to the registry itself.
package sensor
