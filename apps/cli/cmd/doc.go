// Package cmd implements the hitfetch CLI commands using Cobra.
//
// Available commands:
//   - get: Fetch URLs with stored credentials and the session cookie jar
//   - post: Send a POST request
//   - token: Manage stored credentials per host
//   - cookies: Export, import or clear the session cookie jar
//   - version: Show hitfetch version information
package cmd
