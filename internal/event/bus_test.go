package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(KindStashFull, func(Event) { got = append(got, "first") })
	b.Subscribe(KindStashFull, func(Event) { got = append(got, "second") })
	b.Subscribe(KindAgentDied, func(Event) { got = append(got, "other kind") })

	b.Publish(StashFull{Agent: 1})
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestUnsubscribeDuringDispatchAffectsOnlyLaterPublishes(t *testing.T) {
	b := NewBus()
	calls := map[string]int{}
	var second Subscription
	b.Subscribe(KindAgentJoined, func(Event) {
		calls["first"]++
		b.Unsubscribe(second)
	})
	second = b.Subscribe(KindAgentJoined, func(Event) { calls["second"]++ })

	b.Publish(AgentJoined{Agent: 0})
	assert.Equal(t, 1, calls["second"], "snapshot still delivers to the removed handler")

	b.Publish(AgentJoined{Agent: 0})
	assert.Equal(t, 2, calls["first"])
	assert.Equal(t, 1, calls["second"])
}

func TestSubscribeDuringDispatchTakesEffectNextPublish(t *testing.T) {
	b := NewBus()
	late := 0
	added := false
	b.Subscribe(KindWindowClosed, func(Event) {
		if !added {
			added = true
			b.Subscribe(KindWindowClosed, func(Event) { late++ })
		}
	})

	b.Publish(WindowClosed{})
	assert.Zero(t, late)
	b.Publish(WindowClosed{})
	assert.Equal(t, 1, late)
}

func TestNestedPublishCompletesBeforeReturn(t *testing.T) {
	b := NewBus()
	var order []string
	b.Subscribe(KindPocketFillChanged, func(Event) {
		order = append(order, "pocket")
		b.Publish(StashFillChanged{Agent: 0, Load: 1})
		order = append(order, "pocket done")
	})
	b.Subscribe(KindStashFillChanged, func(Event) { order = append(order, "stash") })

	b.Publish(PocketFillChanged{Agent: 0, Load: 5})
	assert.Equal(t, []string{"pocket", "stash", "pocket done"}, order)
}

func TestListenerScope(t *testing.T) {
	b := NewBus()
	l := NewListener(b)
	var died []int
	On(l, func(e AgentDied) { died = append(died, e.Agent) })
	On(l, func(AgentRespawned) {})
	require.Equal(t, 2, l.Active())

	b.Publish(AgentDied{Agent: 3})
	assert.Equal(t, []int{3}, died)

	l.UnsubscribeAll()
	assert.Zero(t, l.Active())
	assert.Zero(t, b.Subscribers(KindAgentDied))
	b.Publish(AgentDied{Agent: 4})
	assert.Equal(t, []int{3}, died)
}

func TestUnsubscribeTwice(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(KindCollisionBegin, func(Event) {})
	assert.True(t, b.Unsubscribe(s))
	assert.False(t, b.Unsubscribe(s))
	assert.Equal(t, KindCollisionBegin, s.Kind())
}

func TestClear(t *testing.T) {
	b := NewBus()
	b.Subscribe(KindAgentLeft, func(Event) { t.Fatal("cleared handler called") })
	b.Clear()
	b.Publish(AgentLeft{Agent: 0})
	assert.Zero(t, b.Subscribers(KindAgentLeft))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "stash_full", StashFull{}.Kind().String())
	assert.Equal(t, "unknown", Kind(200).String())
}
