package ui

import "io"

// Surface abstracts the dashboard so alternative console renderers can plug
// in. Implementations must be safe for concurrent calls from ingest and
// stats loops.
type Surface interface {
	WaitReady()
	Stop()
	SetSnapshot(snapshot Snapshot)
	AppendSystem(line string)
	SystemWriter() io.Writer
}
