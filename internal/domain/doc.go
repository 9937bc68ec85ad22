// Package domain defines the core chat types shared across the application.
//
// Concept-oriented files (message.go, events.go, errors.go) hold the wire
// shapes and sentinel errors. No implementation code, just contracts.
// Prevents circular imports by keeping shared types out of the components
// that operate on them.
package domain
