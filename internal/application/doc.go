// Package application provides application initialization and dependency wiring.
// It creates the config fetcher, the page context, API handlers, the optional
// site handler and the HTTP server, keeping the main package focused on CLI
// parsing and orchestration.
package application
