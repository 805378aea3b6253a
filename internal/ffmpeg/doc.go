/*
Package ffmpeg wraps the ffprobe and ffmpeg executables.

Prober decodes ffprobe's JSON output into a VideoInfo. The argument builders
produce the filter chains for each Mode with fixed WebM encoder settings.
Runner executes a single pass with -progress pipe:1, reports progress
blocks to a callback and keeps a bounded tail of stderr for error reports.

Each process runs in its own process group. When the context passed to
Prober.Probe or Runner.Run ends, the whole group receives SIGKILL and the
returned error wraps context.Cause, so callers can tell which timer fired.
*/
package ffmpeg
