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
	"context"
	"errors"
	"testing"
)

func TestRunInitialExchangeRejectsEmptyGroup(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(NewMemTransport())
	if err := coord.RunInitialExchange(context.Background(), map[int]*Tree{}); !errors.Is(err, ErrGroupEmpty) {
		t.Fatalf("got %v, want ErrGroupEmpty", err)
	}
}

func TestContainsNodeName(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(5, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	path := tr.MyNode().KeyPath()
	if !containsNodeName(path, tr.MyNode().Name()) {
		t.Fatal("expected the member's own node to be found in its own key path")
	}
	if containsNodeName(path, "<99,99>") {
		t.Fatal("unexpected match for a node name that cannot exist")
	}
}

func TestOwnerMID(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(4, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	sib, err := tr.MyNode().Sibling()
	if err != nil {
		t.Fatalf("Sibling: %v", err)
	}
	owner, err := tr.OwnerMID(sib)
	if err != nil {
		t.Fatalf("OwnerMID: %v", err)
	}
	if owner != 2 {
		t.Fatalf("owner of member 1's sibling subtree = %d, want 2", owner)
	}
}
