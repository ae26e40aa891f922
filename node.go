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

	"github.com/tgdh/tgdh/crypto"
)

// Position is a node's side relative to its parent.
type Position uint8

const (
	PosNA Position = iota
	PosLeft
	PosRight
)

func (p Position) String() string {
	switch p {
	case PosLeft:
		return "left"
	case PosRight:
		return "right"
	default:
		return "NA"
	}
}

// NodeType tags the role a node plays in the tree.
type NodeType uint8

const (
	// NodeRoot is the single root of the tree.
	NodeRoot NodeType = iota
	// NodeInter is an internal node with no member attached.
	NodeInter
	// NodeMember is an ordinary live-member leaf.
	NodeMember
	// NodeSponsor is the leaf currently responsible for broadcasting
	// updated blinded keys after a join or leave.
	NodeSponsor
)

func (t NodeType) String() string {
	switch t {
	case NodeRoot:
		return "root"
	case NodeInter:
		return "inter"
	case NodeMember:
		return "mem"
	case NodeSponsor:
		return "spon"
	default:
		return "unknown"
	}
}

// Node is one vertex of the binary key tree (spec.md §3, §4.1). The tree
// owns every node; children hold an owning pointer to their parent, which
// is safe here because a TGDH tree has no cycles beyond parent/child and
// the one structural rewrite (sibling promotion on leave, see tree.go)
// re-threads those pointers explicitly rather than aliasing nodes.
type Node struct {
	params *crypto.Params

	pos Position
	l   int
	v   int

	parent *Node
	lchild *Node
	rchild *Node

	ntype NodeType
	mid   *int

	key  *crypto.Scalar
	bkey *crypto.BlindKey
}

// newNode constructs a detached node; callers wire parent/children and
// call recalcPosition to fill in l/v.
func newNode(params *crypto.Params, ntype NodeType) *Node {
	return &Node{params: params, ntype: ntype, pos: PosNA}
}

// Name returns the wire-format node name "<l,v>" (spec.md §6).
func (n *Node) Name() string {
	return fmt.Sprintf("<%d,%d>", n.l, n.v)
}

// L is the node's level; the root is level 0.
func (n *Node) L() int { return n.l }

// V is the node's position within its level.
func (n *Node) V() int { return n.v }

// Type returns the node's current role tag.
func (n *Node) Type() NodeType { return n.ntype }

// MID returns the member id of a leaf, or nil for an internal node.
func (n *Node) MID() *int { return n.mid }

// Parent returns the node's parent, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the left and right child, or (nil, nil) at a leaf.
func (n *Node) Children() (*Node, *Node) { return n.lchild, n.rchild }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.lchild == nil && n.rchild == nil }

// Key returns the node's private key, or nil if not yet derived/set.
func (n *Node) Key() *crypto.Scalar { return n.key }

// BlindKey returns the node's blinded key, or nil if not yet computed.
func (n *Node) BlindKey() *crypto.BlindKey { return n.bkey }

// SetBlindKey installs a blinded key received over the transport for a
// co-path node. It never sets the private key: invariant 6 (only-my-
// private) means a member only ever learns this field for its own path.
func (n *Node) SetBlindKey(bkey *crypto.BlindKey) {
	n.bkey = bkey
}

// recalcPosition recomputes l/v from the parent, mirroring the original
// DataNode.calculate_name: left child v = 2*parent.v, right = 2*parent.v+1.
func (n *Node) recalcPosition() {
	if n.parent == nil {
		n.l, n.v = 0, 0
		return
	}
	n.l = n.parent.l + 1
	switch n.pos {
	case PosLeft:
		n.v = 2 * n.parent.v
	case PosRight:
		n.v = 2*n.parent.v + 1
	}
}

// Sibling returns the other child of the node's parent. Fails on the
// root, which has none (spec.md §4.1).
func (n *Node) Sibling() (*Node, error) {
	if n.parent == nil {
		return nil, fmt.Errorf("%w: node %s has no parent", ErrStructure, n.Name())
	}
	if n.parent.lchild == n {
		return n.parent.rchild, nil
	}
	if n.parent.rchild == n {
		return n.parent.lchild, nil
	}
	return nil, fmt.Errorf("%w: node %s not linked from its parent", ErrStructure, n.Name())
}

// KeyPath returns the sequence of nodes from n up to and including the
// root, in child-to-root order (spec.md §4.1, Glossary "Key path").
func (n *Node) KeyPath() []*Node {
	path := make([]*Node, 0, n.l+1)
	for cur := n; cur != nil; cur = cur.parent {
		path = append(path, cur)
	}
	return path
}

// CoPath returns, for each non-root node on n's key path, its sibling,
// in the same child-to-root order. The root has no co-path entry
// (spec.md §4.1, Glossary "Co-path").
func (n *Node) CoPath() []*Node {
	keyPath := n.KeyPath()
	co := make([]*Node, 0, len(keyPath))
	for _, node := range keyPath {
		if node.ntype == NodeRoot {
			continue
		}
		sib, err := node.Sibling()
		if err != nil {
			// KeyPath only ever yields well-formed ancestors, so a
			// missing sibling here means the tree itself is broken.
			panic(err)
		}
		co = append(co, sib)
	}
	return co
}

// GenPrivateKey draws a fresh private key from src and stores it.
func (n *Node) GenPrivateKey(src crypto.ScalarSource) error {
	key, err := src.Next(n.params)
	if err != nil {
		return err
	}
	n.key = key
	return nil
}

// GenBlindKey sets bkey = g^key mod p. Fails with ErrUninit if the
// private key hasn't been set yet.
func (n *Node) GenBlindKey() error {
	if n.key == nil {
		return fmt.Errorf("%w: node %s has no private key", ErrUninit, n.Name())
	}
	n.bkey = crypto.BlindOf(n.params, n.key)
	return nil
}

// MarkSponsor tags n as the sponsor. When join is true it also transfers
// the leaving insertion node's identity onto n (spec.md §4.2 step 3);
// when join is false (a leave) only the type tag changes and the caller
// is responsible for clearing key material afterward (spec.md §4.2,
// leave mutation step 4).
func (n *Node) MarkSponsor(mid *int, key, bkey *crypto.Scalar, join bool) {
	n.ntype = NodeSponsor
	if join {
		n.mid = mid
		n.key = key
		n.bkey = bkey
	}
}

// MarkInsertion relabels n as an internal node and clears its key
// material, used when a leaf becomes the insertion point for a join
// (spec.md §4.2 step 4).
func (n *Node) MarkInsertion() {
	n.ntype = NodeInter
	n.mid = nil
	n.key = nil
	n.bkey = nil
}

// MarkNewMember tags n as an ordinary member leaf carrying mid.
func (n *Node) MarkNewMember(mid int) {
	n.ntype = NodeMember
	n.mid = &mid
}

// PromoteToRoot rewrites n in place to be the tree's new root, used when
// a leave removes the root's direct child and n (its sibling) becomes
// the whole new tree (spec.md §4.2 step 2).
func (n *Node) PromoteToRoot() {
	n.pos = PosNA
	n.ntype = NodeRoot
	n.mid = nil
	n.parent = nil
	n.l, n.v = 0, 0
	n.key = nil
	n.bkey = nil
}

// AbsorbFrom overwrites n's type, member id, children and key material
// with other's, re-parenting other's children onto n and leaving other
// detached. This is sibling-promotion during a leave (spec.md §4.2 step
// 3, §9 "Sibling-promotion during leave"): rather than copying Go
// pointers blindly the way the Python original does, the grandchildren
// are explicitly re-parented onto n so invariant 3 (position
// consistency) holds the moment the caller recalculates names.
func (n *Node) AbsorbFrom(other *Node) {
	n.ntype = other.ntype
	n.mid = other.mid
	n.key = other.key
	n.bkey = other.bkey
	n.lchild = other.lchild
	n.rchild = other.rchild
	if n.lchild != nil {
		n.lchild.parent = n
		n.lchild.pos = PosLeft
	}
	if n.rchild != nil {
		n.rchild.parent = n
		n.rchild.pos = PosRight
	}
}
