// Package logging builds the zap loggers used across banktransfer.
//
// CLI output goes to stdout, so logs are console-encoded on stderr, with an
// optional copy in a log file. Components accept a *zap.Logger and treat nil
// as a no-op logger (see OrNop).
package logging
