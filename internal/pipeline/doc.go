/*
Package pipeline runs a stored upload through validation and the ffmpeg
passes for the configured mode.

Validate probes the file and rejects uploads without a video stream or
longer than the configured maximum. Process runs one pass for the blend
and convert modes, or a vidstabdetect pass followed by a vidstabtransform
pass for stabilize.

Every pass runs under context.WithTimeoutCause with ErrPassTimeout. The
caller's context is expected to carry ErrRequestTimeout as the cause of
the overall deadline. Failures are returned as *Error, whose Kind tells the
two timers apart from tool failures and cancellation.
*/
package pipeline
