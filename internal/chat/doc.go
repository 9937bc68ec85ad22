// Package chat implements the relay core: the connection registry, the
// append-only message store with its reaction protocol, and the broadcast
// fan-out engine.
//
// The registry and store are the only shared mutable state in the process.
// Each is independently lockable and is passed by handle to the transport
// layer; nothing here is package-level. Fan-out always iterates a registry
// snapshot, never the live membership map, so delivery failures can
// unregister connections concurrently without invalidating iteration.
package chat
