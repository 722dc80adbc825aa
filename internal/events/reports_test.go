package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

func TestReportBroadcaster(t *testing.T) {
	b := NewReportBroadcaster(1)
	assert.Nil(t, b.Latest())

	ch := b.Subscribe()

	first := domain.NewReport("1d", []domain.RuleName{domain.RuleBreakout})
	second := domain.NewReport("1d", []domain.RuleName{domain.RuleBreakout})
	b.Publish(first)
	b.Publish(second) // buffer full, dropped for this subscriber

	got := <-ch
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, second.ID, b.Latest().ID)

	b.Unsubscribe(ch)
	_, open := <-ch
	require.False(t, open)

	assert.NotPanics(t, func() {
		b.Unsubscribe(ch)
		b.Publish(nil)
	})
}
