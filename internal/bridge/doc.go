// Package bridge moves session notifications from the goroutine that
// mutates a session to the goroutine that presents it.
//
// Bridge is the threaded variant: an unbounded FIFO queue with a
// non-blocking Post and a delivery loop (Run) owned by the presentation
// side. Direct is the in-call variant for sessions that already run on the
// presentation goroutine. Both satisfy Dispatcher and stamp each event with
// a sequence number in Post order.
//
// Example Usage:
//
//	b := bridge.New(bridge.WithLogger(logger))
//	b.Subscribe(func(e types.Event) { ui.Apply(e) })
//	go b.Run(ctx)       // presentation goroutine
//	b.Post(event)       // any goroutine
package bridge
