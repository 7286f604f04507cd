package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command,
// a single source of truth for every API operation.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit returns true if this endpoint needs the server to be
	// fully initialized (stores, scheduler, providers ready).
	RequiresInit() bool

	// Command returns a Cobra command that calls this endpoint via HTTP,
	// or nil for endpoints with no CLI surface. getServerURL is called at
	// runtime so --server can override the default.
	Command(getServerURL func() string) *cobra.Command
}
