// Package events provides an in-memory pub/sub broker for engine lifecycle
// notifications: block commits, transition execution, scheduler
// reschedules, and cache invalidations. It is a plain fan-out bus — one
// event channel in, per-subscriber buffered channels out, non-blocking on
// both ends. Full subscriber buffers drop events rather than block the
// broadcaster; this is diagnostic and CLI-watch plumbing, not a log
// consensus relies on. Publish stamps a fresh UUID into Event.ID and the
// current time into Event.Timestamp whenever the caller leaves them zero.
//
//	broker := events.NewBroker()
//	broker.Start()
//	defer broker.Stop()
//
//	sub := broker.Subscribe()
//	defer broker.Unsubscribe(sub)
//	go func() {
//		for ev := range sub {
//			fmt.Println(ev.Type, ev.Message)
//		}
//	}()
package events
