/*
Package log configures the process-wide zerolog logger.

Init sets the global level and output once at startup; everything else
derives child loggers from it. WithComponent tags a logger with the
subsystem name, and the With* helpers attach the identifiers that recur
across the codebase (platform, backup, cloud) so log lines correlate
without per-call-site ceremony.

The zero value of zerolog.Logger is disabled, which keeps library code
and tests quiet unless Init has run.
*/
package log
