package main

import (
	"encoding/json"
	"sync"

	"objectchain/core"
)

// loopbackNetwork is the minimal single-process transport a solo miner
// needs: Broadcast delivers straight back to every local subscriber, with
// no peers, matching how a one-node devnet never needs to leave the
// process. A multi-node deployment would swap this for a real libp2p or
// gRPC adapter behind the same two methods.
type loopbackNetwork struct {
	self core.Address

	mu   sync.Mutex
	subs map[string][]chan core.InboundMsg
}

func newLoopbackNetwork(self core.Address) *loopbackNetwork {
	return &loopbackNetwork{self: self, subs: make(map[string][]chan core.InboundMsg)}
}

func (n *loopbackNetwork) Broadcast(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg := core.InboundMsg{Topic: topic, From: n.self, Payload: payload}

	n.mu.Lock()
	chans := append([]chan core.InboundMsg(nil), n.subs[topic]...)
	n.mu.Unlock()

	for _, ch := range chans {
		ch <- msg
	}
	return nil
}

func (n *loopbackNetwork) Subscribe(topic string) (<-chan core.InboundMsg, func()) {
	ch := make(chan core.InboundMsg, 16)
	n.mu.Lock()
	n.subs[topic] = append(n.subs[topic], ch)
	n.mu.Unlock()

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[topic]
		for i, c := range subs {
			if c == ch {
				n.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, unsub
}
