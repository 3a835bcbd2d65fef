// Package domain holds the error taxonomy and value types shared by the
// orchestrator and its adapters. It has no dependencies on logging, process
// management or networking.
package domain
