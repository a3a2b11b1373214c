// Package webmanager hosts the websocket dispatcher runtime.
//
// Ownership boundary:
// - Dispatcher: decode, route by discriminant, defer through the session's completion scheduler
// - Handlers: the core request handlers and their session-scoped demo state
// - Hub and Broadcaster: the live-session fan-out set and the periodic notification cycle
// - Service: HTTP routes, websocket upgrade, static document, and process lifecycle
package webmanager
