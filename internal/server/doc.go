// Package server exposes the HTTP API: run submission, the analyst and
// model catalogs, a health check, and a websocket feed of run events.
package server
