// Package logging builds the zap logger shared by the server and the CLI.
package logging
