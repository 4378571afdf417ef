// Package api defines the core data types for the pipeline engine
//
// This package contains all the shared types used across the service,
// including run state, partial updates, market data records, portfolio and
// signal types, run events, and HTTP messages
package api
