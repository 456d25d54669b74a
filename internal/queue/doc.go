// Package queue implements the replicated FIFO message queue state machine.
//
// It is a deterministic, total transition function applied over a
// consensus log: Apply(logIndex, Command, *State) -> (*State, []Effect).
// Every replica that applies the same command stream in the same order
// derives byte-identical state. The package performs no I/O and holds no
// mutex; callers (internal/service) are responsible for serializing calls
// to Apply in log order.
package queue
