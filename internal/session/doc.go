// Package session keeps the per-chat conversation state of the ordering flow.
// Stores hand out copies; nothing changes until the caller puts the session back.
package session
