// Package lane provides a single-worker FIFO execution queue.
//
// A [Lane] owns one worker goroutine and runs submitted functions one
// at a time, in submission order. Anything a function touches while
// running on a lane is therefore free of data races with every other
// function on the same lane, and no mutex is required. This is the
// building block the parent package's Actor serializes its state
// with, but a Lane is useful on its own wherever work must happen on
// one logical thread, such as serialized writers or ordered side
// effects.
//
// Submission is multi-producer safe:
//
//   - [Lane.Submit]: enqueue a function, waiting for mailbox space;
//     unblocks early if the context ends.
//   - [Lane.TrySubmit]: enqueue without blocking.
//   - [Lane.Flush]: barrier that waits until everything enqueued
//     before it has run.
//
// [Lane.Close] stops intake, runs what is already queued, and waits
// for the worker to exit. Close is idempotent.
//
// Functions must not panic: a panic on the lane crashes the program
// like any other goroutine panic. Callers that run untrusted work
// wrap it in their own recover, as the parent package's Actor does.
package lane
