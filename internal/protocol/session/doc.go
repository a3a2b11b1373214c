// Package session owns one live websocket connection.
//
// Ownership boundary:
// - inbound read loop, per-session rate limit, and frame hand-off to a Dispatcher
// - the session loop: dispatch and deferred completions run here, one at a time
// - the outbound writer and the send primitives used by handlers and the broadcaster
// - pending completion bookkeeping and cancellation on close
//
// Session-scoped handler state lives in Value/SetValue and is only touched
// from the session loop, so it needs no locking.
package session
