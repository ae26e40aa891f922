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

func TestSiblingOfRootFails(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(4, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if _, err := tr.Root().Sibling(); !errors.Is(err, ErrStructure) {
		t.Fatalf("Root().Sibling(): got %v, want ErrStructure", err)
	}
}

func TestKeyPathAndCoPathLengths(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(7, 3)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	me := tr.MyNode()
	keyPath := me.KeyPath()
	coPath := me.CoPath()

	if len(keyPath) != me.L()+1 {
		t.Fatalf("len(KeyPath) = %d, want %d", len(keyPath), me.L()+1)
	}
	if len(coPath) != me.L() {
		t.Fatalf("len(CoPath) = %d, want %d", len(coPath), me.L())
	}
	if keyPath[0] != me {
		t.Fatal("KeyPath[0] is not the member's own node")
	}
	if keyPath[len(keyPath)-1].Type() != NodeRoot {
		t.Fatal("KeyPath does not end at the root")
	}
	for i, sib := range coPath {
		got, err := keyPath[i].Sibling()
		if err != nil {
			t.Fatalf("Sibling: %v", err)
		}
		if got != sib {
			t.Fatalf("CoPath[%d] does not match Sibling of KeyPath[%d]", i, i)
		}
	}
}

func TestGenBlindKeyBeforePrivateKeyFails(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(2, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	fresh := newNode(tr.Root().params, NodeMember)
	if err := fresh.GenBlindKey(); !errors.Is(err, ErrUninit) {
		t.Fatalf("GenBlindKey on a keyless node: got %v, want ErrUninit", err)
	}
}

func TestFindByMIDAndByName(t *testing.T) {
	t.Parallel()

	tr, err := NewTree(5, 1)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	n, err := tr.FindByMID(1)
	if err != nil {
		t.Fatalf("FindByMID(1): %v", err)
	}
	if n != tr.MyNode() {
		t.Fatal("FindByMID(1) did not return the tree owner's own node")
	}
	byName, err := tr.FindByName(n.L(), n.V())
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if byName != n {
		t.Fatal("FindByName did not return the same node as FindByMID")
	}

	if _, err := tr.FindByMID(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByMID(999): got %v, want ErrNotFound", err)
	}
	if _, err := tr.FindByName(99, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByName(99,99): got %v, want ErrNotFound", err)
	}
}
