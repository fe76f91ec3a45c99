// Package relay wires the listener, the agent registry and the operator
// console into one server.
//
// Listen binds the TCP socket; Run accepts agents and runs the console
// until the operator exits or the context is cancelled, then closes every
// agent connection and the listener without draining anything.
package relay
