// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org>

package tgdh

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
)

// Transport is the pub/sub contract the exchange coordinator drives
// (spec.md §4.3, grounded on the reference's osbrain PUB/SOCKET usage in
// member_agent.py: bind, connect, publish, close_all). A topic is a
// member's own mailbox, named "mem_<uid>"; any number of other members
// may Connect to it before a Publish, and every connected subscriber
// receives every message published to that topic until CloseAll.
type Transport interface {
	// Bind registers topic as publishable. Binding twice is a no-op.
	Bind(topic string) error
	// Connect subscribes to topic, returning a channel of messages
	// published to it from this point on.
	Connect(topic string) (<-chan string, error)
	// Publish sends message to every current subscriber of topic.
	Publish(topic, message string) error
	// CloseAll tears down every topic and subscriber channel, so a
	// round's stale connections can't leak into the next one.
	CloseAll()
}

// MemTransport is an in-process Transport backed by buffered channels,
// standing in for the reference's nameserver-brokered PUB/SUB sockets
// when every member happens to live in the same process (spec.md §9,
// "Transport adapter").
type MemTransport struct {
	mu   sync.Mutex
	subs map[string][]chan string
}

// NewMemTransport returns an empty, ready-to-use MemTransport.
func NewMemTransport() *MemTransport {
	return &MemTransport{subs: make(map[string][]chan string)}
}

// Bind implements Transport.
func (m *MemTransport) Bind(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[topic]; !ok {
		m.subs[topic] = nil
	}
	return nil
}

// Connect implements Transport.
func (m *MemTransport) Connect(topic string) (<-chan string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[topic]; !ok {
		return nil, fmt.Errorf("%w: topic %q not bound", ErrTransport, topic)
	}
	ch := make(chan string, 1)
	m.subs[topic] = append(m.subs[topic], ch)
	return ch, nil
}

// Publish implements Transport.
func (m *MemTransport) Publish(topic, message string) error {
	m.mu.Lock()
	subs, ok := m.subs[topic]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: topic %q not bound", ErrTransport, topic)
	}
	for _, ch := range subs {
		ch <- message
	}
	return nil
}

// CloseAll implements Transport.
func (m *MemTransport) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, subs := range m.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(m.subs, topic)
	}
}

// memberTopic is the canonical mailbox name for a member id.
func memberTopic(uid int) string {
	return fmt.Sprintf("mem_%d", uid)
}

// formatKeyMessage renders the wire format "<l,v>:<decimal-int>" a
// member publishes when sharing one node's blinded key (spec.md §6).
func formatKeyMessage(n *Node) (string, error) {
	if n.BlindKey() == nil {
		return "", fmt.Errorf("%w: node %s has no blinded key yet", ErrUninit, n.Name())
	}
	return fmt.Sprintf("%s:%s", n.Name(), n.BlindKey().String()), nil
}

// parseKeyMessage reverses formatKeyMessage, returning the node name
// (still bracketed, e.g. "<1,0>") and the decoded blinded key.
func parseKeyMessage(message string) (string, *big.Int, error) {
	name, digits, ok := strings.Cut(message, ":")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed key message %q", ErrTransport, message)
	}
	bkey, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed blinded key in %q", ErrTransport, message)
	}
	return name, bkey, nil
}

// parseNodeName splits a "<l,v>" wire name into its level and index.
func parseNodeName(name string) (l, v int, err error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
	parts := strings.SplitN(trimmed, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed node name %q", ErrTransport, name)
	}
	l, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed node name %q", ErrTransport, name)
	}
	v, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed node name %q", ErrTransport, name)
	}
	return l, v, nil
}
