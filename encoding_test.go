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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tgdh/tgdh/crypto"
)

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	tree, err := NewTree(5, 3, WithScalarSource(crypto.RandomSource{}))
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	blob, err := EncodeSnapshot(tree)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	got, err := DecodeSnapshot(blob)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	want := snapshotOf(tree)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if int(got.Size) != tree.Size() {
		t.Fatalf("Size = %d, want %d", got.Size, tree.Size())
	}
	if len(got.Nodes) != 2*tree.Size()-1 {
		t.Fatalf("len(Nodes) = %d, want %d", len(got.Nodes), 2*tree.Size()-1)
	}
}

func TestDecodeSnapshotRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := DecodeSnapshot(nil); err == nil {
		t.Fatal("expected an error decoding an empty blob")
	}
}
