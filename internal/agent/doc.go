// Package agent tracks the raw TCP connections of remote agents.
//
// # Overview
//
// Every accepted peer becomes a Connection keyed by its remote address
// ("ip:port"). A Connection owns the socket and the Inbox that buffers
// whatever the peer writes, so the two are created and destroyed together.
//
// # Manager
//
// The Manager is the registry of live connections:
//
//	mgr := agent.NewManager(logger)
//	conn, err := mgr.Attach(netConn)
//
// Key operations:
//
//   - Register(conn): Add a connection, fails on a duplicate ID
//   - Unregister(agentID): Remove a connection (no-op when absent)
//   - Get(id): Look up a connection
//   - List(): Sorted snapshot of connected agent IDs
//   - Receive(conn): Per-connection read loop feeding the Inbox
//
// All registry operations take the same mutex, so List never observes a
// connection that is half registered or half removed.
//
// # Receive loop
//
// Receive reads up to ReadChunkSize bytes at a time and pushes each read,
// decoded as UTF-8, onto the Inbox as one chunk. Nothing is split into
// lines here. Invalid bytes are replaced with U+FFFD and a rune cut in half
// by a read boundary is completed by the next read. A zero-length read or
// any read error ends the loop, which then unregisters the agent, closes
// the socket and closes the Inbox.
//
// # Inbox
//
// The Inbox is an unbounded FIFO with one producer (Receive) and one
// consumer (the session correlator). Next waits for a chunk with a timeout
// and returns immediately once the Inbox is closed and empty.
package agent
