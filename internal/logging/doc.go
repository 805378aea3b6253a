// Package logging provides the leveled logger used throughout smoothy.
//
// Levels, from most to least verbose:
//   - DEBUG: subprocess arguments, progress ticks, cleanup details
//   - INFO: job lifecycle and startup sections
//   - WARN: recoverable problems (cleanup failures, bad config values)
//   - ERROR: failed jobs and handler errors
//
// The level comes from LOG_LEVEL (or DEBUG=true) and can be overridden with
// SetLevel once the configuration file has been read.
package logging
