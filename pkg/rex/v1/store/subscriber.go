package store

import (
	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
)

// subscription pairs a handler with the identity used to remove it.
type subscription[S any] struct {
	id int64
	fn rex.Subscriber[S]
}

// subscriberList keeps handlers in subscription order. Access is
// serialized by the store's processing lock.
type subscriberList[S any] struct {
	nextID int64
	subs   []subscription[S]
}

func (l *subscriberList[S]) add(fn rex.Subscriber[S]) int64 {
	l.nextID++
	l.subs = append(l.subs, subscription[S]{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *subscriberList[S]) remove(id int64) bool {
	for i, sub := range l.subs {
		if sub.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

// notify invokes every handler with the committed state, in subscription
// order.
func (l *subscriberList[S]) notify(state S) {
	for _, sub := range l.subs {
		sub.fn(state)
	}
}

func (l *subscriberList[S]) len() int {
	return len(l.subs)
}

func (l *subscriberList[S]) clear() {
	l.subs = nil
}
