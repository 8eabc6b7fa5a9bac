// Package actions performs the registry writes that follow from emitted
// events.
//
// The wrappers mirror the operations a rule engine would call for each
// trigger. Applier ties them to the event stream so a standalone deployment
// can keep the registry current without an external rule engine.
package actions
