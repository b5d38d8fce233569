package events

import "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"

// MultiBus fans every event out to several buses in order.
type MultiBus []events.Bus

func (m MultiBus) Emit(event events.Event) {
	for _, b := range m {
		if b != nil {
			b.Emit(event)
		}
	}
}

var _ events.Bus = MultiBus(nil)
