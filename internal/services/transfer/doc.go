// Package transfer runs the transfer workflow.
//
// A run walks the steps authenticate, validate, check balance, transfer and
// history in that order. Every step except transfer is optional. The first
// failing step ends the run with a Failure naming the step and error kind;
// a failed history lookup after a completed transfer only adds a Warning.
// Nothing is retried here: transient faults were already retried by the
// transport by the time a gateway returns.
package transfer
