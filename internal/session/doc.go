// Package session turns one operator line into one command on an agent's
// socket and collects what comes back.
//
// The wire has no framing, no request IDs and no delimiter between the
// output of one command and the next, so the Correlator does not match
// responses to requests. It waits up to FirstOutputTimeout for a first
// chunk, then keeps draining while chunks keep arriving within
// SettleTimeout of each other. Anything that lands in that window, including
// output the agent sent before the command, is shown as the response.
//
// Before display the first line is dropped if it repeats the command, for
// agents that echo their input. No other line is checked.
package session
