// Package conf contains the constants that are used across packages for configuring
// the server, the workers, and the CLI behaviour.
package conf

import (
	"fmt"
	"time"
)

const (
	// STEEPVERSION is the version of the steep application.
	STEEPVERSION = "steep 0.1.0"
	// STEEPVERSIONMAJORN is the major version.
	STEEPVERSIONMAJORN = 0
	// STEEPVERSIONMINORN is the minor version.
	STEEPVERSIONMINORN = 1
	// STEEPVERSIONPATCHN is the patch version.
	STEEPVERSIONPATCHN = 0
	// DEFAULTPROGRESSTHRESHOLD is the minimum number of paths in a batch check before
	// work done progress events are emitted to the client.
	DEFAULTPROGRESSTHRESHOLD = 2
	// DEFAULTCODEWORKERS is the number of code checking worker processes spawned when
	// no count is given on the command line.
	DEFAULTCODEWORKERS = 2
	// INBOUNDQUEUESIZE is the buffer size of the master inbound message queue.
	INBOUNDQUEUESIZE = 256
	// WRITEQUEUESIZE is the buffer size of the master write queue.
	WRITEQUEUESIZE = 256
	// EXITOK exit code when checking finished without diagnostics.
	EXITOK = 0
	// EXITDIAGNOSTICS exit code when diagnostics were reported or expectations were
	// unsatisfied.
	EXITDIAGNOSTICS = 1
	// EXITWORKERERR exit code when an unrecoverable worker error was observed.
	EXITWORKERERR = 2
)

// FullVersion returns the version and copyright.
func FullVersion() string {
	return fmt.Sprintf("%v Copyright (C) %v", STEEPVERSION, time.Now().Year())
}

// Copyright is the copyright to be written out in the CLI.
func Copyright() string {
	return fmt.Sprintf("Copyright (C) %v", time.Now().Year())
}
