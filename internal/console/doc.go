// Package console implements the operator's interactive controller.
//
// The Controller reads one line at a time and moves between three states:
//
//	MAIN_MENU            list, help, use <id>, exit
//	AGENT_SESSION(id)    any line goes to the agent; exit returns to MAIN_MENU
//	SHUTDOWN             terminal; Run returns
//
// End of input acts like exit at the current level. Closing connections
// and the listener on shutdown is the caller's job (see relay.Server).
package console
