// Package lifecycle brings the plugin up and down.
//
// The Orchestrator runs the enable sequence, reconciles sessions with the
// connected players, disables the plugin when something goes wrong, and on
// disable settles every connected player before draining the async tasks
// and closing the stores on a goroutine of its own.
//
// The Service ties an Orchestrator to the process: it serves the operator
// API, reloads on request, and disables and waits for the drain on shutdown.
package lifecycle
