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
	"errors"
	"testing"
)

func TestMemTransportPublishFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	tr := NewMemTransport()
	if err := tr.Bind("mem_1"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	subA, err := tr.Connect("mem_1")
	if err != nil {
		t.Fatalf("Connect (a): %v", err)
	}
	subB, err := tr.Connect("mem_1")
	if err != nil {
		t.Fatalf("Connect (b): %v", err)
	}
	if err := tr.Publish("mem_1", "<1,0>:42"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, ch := range []<-chan string{subA, subB} {
		select {
		case msg := <-ch:
			if msg != "<1,0>:42" {
				t.Fatalf("got %q, want %q", msg, "<1,0>:42")
			}
		default:
			t.Fatal("subscriber did not receive the published message")
		}
	}
}

func TestMemTransportPublishUnboundTopicFails(t *testing.T) {
	t.Parallel()

	tr := NewMemTransport()
	if err := tr.Publish("mem_9", "whatever"); !errors.Is(err, ErrTransport) {
		t.Fatalf("Publish on unbound topic: got %v, want ErrTransport", err)
	}
	if _, err := tr.Connect("mem_9"); !errors.Is(err, ErrTransport) {
		t.Fatalf("Connect to unbound topic: got %v, want ErrTransport", err)
	}
}

func TestMemTransportCloseAllClosesSubscribers(t *testing.T) {
	t.Parallel()

	tr := NewMemTransport()
	if err := tr.Bind("mem_1"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	sub, err := tr.Connect("mem_1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tr.CloseAll()

	if _, ok := <-sub; ok {
		t.Fatal("expected the subscriber channel to be closed")
	}
	if err := tr.Publish("mem_1", "x"); !errors.Is(err, ErrTransport) {
		t.Fatalf("Publish after CloseAll: got %v, want ErrTransport", err)
	}
}

func TestKeyMessageRoundTrip(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(3, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	msg, err := formatKeyMessage(tr.MyNode())
	if err != nil {
		t.Fatalf("formatKeyMessage: %v", err)
	}

	name, bkey, err := parseKeyMessage(msg)
	if err != nil {
		t.Fatalf("parseKeyMessage: %v", err)
	}
	if name != tr.MyNode().Name() {
		t.Fatalf("name = %q, want %q", name, tr.MyNode().Name())
	}
	if bkey.Cmp(tr.MyNode().BlindKey()) != 0 {
		t.Fatalf("bkey = %s, want %s", bkey, tr.MyNode().BlindKey())
	}

	l, v, err := parseNodeName(name)
	if err != nil {
		t.Fatalf("parseNodeName: %v", err)
	}
	if l != tr.MyNode().L() || v != tr.MyNode().V() {
		t.Fatalf("parsed <%d,%d>, want <%d,%d>", l, v, tr.MyNode().L(), tr.MyNode().V())
	}
}

func TestParseKeyMessageRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, _, err := parseKeyMessage("no-colon-here"); !errors.Is(err, ErrTransport) {
		t.Fatalf("got %v, want ErrTransport", err)
	}
	if _, _, err := parseKeyMessage("<1,0>:not-a-number"); !errors.Is(err, ErrTransport) {
		t.Fatalf("got %v, want ErrTransport", err)
	}
	if _, _, err := parseNodeName("garbage"); !errors.Is(err, ErrTransport) {
		t.Fatalf("got %v, want ErrTransport", err)
	}
}

func TestFormatKeyMessageRejectsMissingBlindKey(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(2, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	n, err := tr.FindByMID(2)
	if err != nil {
		t.Fatalf("FindByMID: %v", err)
	}
	n.bkey = nil
	if _, err := formatKeyMessage(n); !errors.Is(err, ErrUninit) {
		t.Fatalf("formatKeyMessage on node with nil bkey: got %v, want ErrUninit", err)
	}
}
