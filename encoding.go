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
	"bytes"
	"errors"
	"fmt"

	"github.com/karalabe/ssz"
)

// ErrInvalidSnapshot is returned by DecodeSnapshot when the blob doesn't
// round-trip into a well-formed tree (spec.md §5, "Snapshot hand-off").
var ErrInvalidSnapshot = errors.New("tgdh: invalid snapshot encoding")

// maxSnapshotNodes bounds the SSZ list so the decoder never has to trust
// an attacker-controlled length prefix; 2*size-1 nodes for a group of up
// to 4096 members comfortably fits.
const maxSnapshotNodes = 8191

// scalarLen is the fixed width of a serialized modulus-2048 field element:
// ceil(2048/8) bytes, enough for the largest value < p.
const scalarLen = 256

// nodeRecord is one row of a Snapshot: everything needed to reconstruct a
// single Node's position and public state. It never carries a private
// key, only the blinded key, because a Snapshot crosses the wire to a
// brand-new member who must not learn anyone else's key material
// (spec.md invariant 6, "only-my-private").
type nodeRecord struct {
	L     uint32
	V     uint32
	Type  uint8
	HasID bool
	MID   uint32
	BKey  [scalarLen]byte
}

// SizeSSZ implements ssz.StaticObject: every field above is fixed width,
// so a nodeRecord never needs an offset into the dynamic section.
func (n *nodeRecord) SizeSSZ() uint32 {
	return 4 + 4 + 1 + 1 + 4 + scalarLen
}

// DefineSSZ implements ssz.Object.
func (n *nodeRecord) DefineSSZ(codec *ssz.Codec) {
	ssz.DefineUint32(codec, &n.L)
	ssz.DefineUint32(codec, &n.V)
	ssz.DefineUint8(codec, &n.Type)
	ssz.DefineBool(codec, &n.HasID)
	ssz.DefineUint32(codec, &n.MID)
	ssz.DefineStaticBytes(codec, &n.BKey)
}

// Snapshot is the opaque tree hand-off a join's insertion point gives to
// a brand-new member so it can build its own Tree without having walked
// the join itself (spec.md §5, grounded on the reference's tree_export /
// JOIN_ACK payload). A Snapshot carries structure and public blinded
// keys only; the new member still generates its own private scalar path
// exactly as any other member would.
type Snapshot struct {
	Size  uint32
	Nodes []*nodeRecord
}

// SizeSSZ implements ssz.DynamicObject: the node list is length-prefixed,
// so callers must report whether they want the fixed or dynamic part.
func (s *Snapshot) SizeSSZ(sizer *ssz.Sizer, fixed bool) uint32 {
	if fixed {
		return 4 + 4
	}
	return ssz.SizeSliceOfStaticObjects(sizer, s.Nodes)
}

// DefineSSZ implements ssz.Object.
func (s *Snapshot) DefineSSZ(codec *ssz.Codec) {
	ssz.DefineUint32(codec, &s.Size)
	ssz.DefineSliceOfStaticObjectsOffset(codec, &s.Nodes, maxSnapshotNodes)
	ssz.DefineSliceOfStaticObjectsContent(codec, &s.Nodes, maxSnapshotNodes)
}

// snapshotOf walks every node of t and captures its public state.
func snapshotOf(t *Tree) *Snapshot {
	nodes := t.preOrderNodes(t.root)
	snap := &Snapshot{
		Size:  uint32(t.size),
		Nodes: make([]*nodeRecord, 0, len(nodes)),
	}
	for _, n := range nodes {
		rec := &nodeRecord{
			L:    uint32(n.l),
			V:    uint32(n.v),
			Type: uint8(n.ntype),
		}
		if n.mid != nil {
			rec.HasID = true
			rec.MID = uint32(*n.mid)
		}
		if n.bkey != nil {
			b := n.bkey.Bytes()
			copy(rec.BKey[scalarLen-len(b):], b)
		}
		snap.Nodes = append(snap.Nodes, rec)
	}
	return snap
}

// EncodeSnapshot serializes t's public structure for hand-off to a
// joining member (spec.md §5).
func EncodeSnapshot(t *Tree) ([]byte, error) {
	snap := snapshotOf(t)
	var buf bytes.Buffer
	if err := ssz.EncodeToStream(&buf, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a blob produced by EncodeSnapshot back into a
// Snapshot. It does not build a Tree directly: the caller (the new
// member) still needs to supply its own group params and scalar source,
// which belongs in NewTreeFromSnapshot.
func DecodeSnapshot(blob []byte) (*Snapshot, error) {
	snap := new(Snapshot)
	size := uint32(len(blob))
	if err := ssz.DecodeFromStream(bytes.NewReader(blob), snap, size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.Size == 0 || len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidSnapshot)
	}
	return snap, nil
}
