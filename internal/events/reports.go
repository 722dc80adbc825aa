// Package events fans finished scan reports out to live subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

// ReportBroadcaster fans out reports to all subscribers via buffered channels
// and remembers the most recent one for late joiners.
type ReportBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan *domain.Report]struct{}
	latest *domain.Report
	buffer int
}

// NewReportBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewReportBroadcaster(buffer int) *ReportBroadcaster {
	if buffer < 1 {
		buffer = 8
	}
	return &ReportBroadcaster{
		subs:   make(map[chan *domain.Report]struct{}),
		buffer: buffer,
	}
}

// Publish stores r as the latest report and sends it to every subscriber, dropping if a reader is slow.
func (b *ReportBroadcaster) Publish(r *domain.Report) {
	if r == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = r
	for ch := range b.subs {
		select {
		case ch <- r:
		default:
			// drop slow consumer
		}
	}
}

// Latest returns the last published report, nil before the first scan.
func (b *ReportBroadcaster) Latest() *domain.Report {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Subscribe returns a channel that receives reports until Unsubscribe is called.
func (b *ReportBroadcaster) Subscribe() chan *domain.Report {
	ch := make(chan *domain.Report, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *ReportBroadcaster) Unsubscribe(ch chan *domain.Report) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
