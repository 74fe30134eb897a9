// Package command implements the durable command queue, the dispatcher,
// and intent normalization.
//
// Commands move through queued -> sent -> {acked, failed}. Delivery is
// push-or-poll: an inline signed push is attempted when a command is
// created, and anything left queued is handed over in FIFO order on the
// edge's next poll. The poll's select-and-transition is atomic, so
// concurrent pollers never double-fetch. Handoff is at-least-once; acks
// from the edge drive the terminal transition, and terminal commands are
// immutable.
package command
