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
	"io"
	"math"
	"math/big"

	"github.com/tgdh/tgdh/crypto"
)

// Tree owns the binary key tree for a single live member (spec.md §3,
// §4.2). Each member holds its own Tree; nothing is shared between
// members except values that travel over the wire (blinded keys,
// snapshots).
type Tree struct {
	params       *crypto.Params
	scalarSource crypto.ScalarSource
	out          io.Writer

	size         int
	uid          int
	nodeMax      int
	nextMemberID int
	height       int

	root        *Node
	myNode      *Node
	refreshPath []*Node
}

// TreeOption configures a Tree at construction time.
type TreeOption func(*Tree)

// WithOutput directs the tree's construction log lines to w. The
// default is io.Discard, matching a library with no opinion on logging.
func WithOutput(w io.Writer) TreeOption {
	return func(t *Tree) { t.out = w }
}

// WithScalarSource overrides the private-key source (default
// crypto.RandomSource{}).
func WithScalarSource(src crypto.ScalarSource) TreeOption {
	return func(t *Tree) { t.scalarSource = src }
}

// WithGroupParams overrides the Diffie-Hellman group (default
// DefaultGroupParams()). Every member in a group must use the same one.
func WithGroupParams(p *crypto.Params) TreeOption {
	return func(t *Tree) { t.params = p }
}

// NewTree builds the canonical initial tree for size members and locates
// uid's own leaf, generating its private and blinded key (spec.md §4.2
// "Initial shape"). uid must be in [1, size].
func NewTree(size, uid int, opts ...TreeOption) (*Tree, error) {
	if size < 2 {
		return nil, fmt.Errorf("tgdh: group size must be at least 2, got %d", size)
	}
	if uid < 1 || uid > size {
		return nil, fmt.Errorf("tgdh: member id %d out of range [1,%d]", uid, size)
	}

	t := &Tree{
		params:       DefaultGroupParams(),
		scalarSource: crypto.RandomSource{},
		out:          io.Discard,
		size:         size,
		uid:          uid,
		nodeMax:      2*size - 1,
		nextMemberID: size + 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.height = int(math.Floor(math.Log2(float64(t.nodeMax))))

	t.buildShape()
	t.typeAssignLeaves()
	t.idAssign()
	if err := t.findMe(); err != nil {
		return nil, err
	}
	if err := t.keyGeneration(); err != nil {
		return nil, err
	}

	fmt.Fprintf(t.out, "MEM %d: built tree with %d members (height %d)\n", t.uid, t.size, t.height)
	return t, nil
}

// NewTreeFromSnapshot reconstructs a Tree from a Snapshot handed off by
// a join's sponsor, then draws the incoming member's own private key
// (spec.md §5, grounded on the reference's new_member_protocol — there
// the sponsor hands over its whole live tree object directly; here only
// public structure and blinded keys cross the wire, per invariant 6
// "only-my-private").
func NewTreeFromSnapshot(snap *Snapshot, opts ...TreeOption) (*Tree, error) {
	if snap == nil || len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrStructure)
	}

	t := &Tree{
		params:       DefaultGroupParams(),
		scalarSource: crypto.RandomSource{},
		out:          io.Discard,
		size:         int(snap.Size),
		nodeMax:      2*int(snap.Size) - 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.height = int(math.Floor(math.Log2(float64(t.nodeMax))))

	byPos := make(map[[2]int]*Node, len(snap.Nodes))
	for _, rec := range snap.Nodes {
		n := newNode(t.params, NodeType(rec.Type))
		n.l = int(rec.L)
		n.v = int(rec.V)
		if rec.HasID {
			mid := int(rec.MID)
			n.mid = &mid
			// The joining member holds the id Join just handed out,
			// which is the largest id in the tree.
			if mid > t.uid {
				t.uid = mid
			}
		}
		if bk := new(big.Int).SetBytes(rec.BKey[:]); bk.Sign() != 0 {
			n.bkey = bk
		}
		byPos[[2]int{n.l, n.v}] = n
	}
	t.nextMemberID = t.uid + 1
	for _, n := range byPos {
		if n.l == 0 {
			n.pos = PosNA
			t.root = n
			continue
		}
		parent, ok := byPos[[2]int{n.l - 1, n.v / 2}]
		if !ok {
			return nil, fmt.Errorf("%w: node <%d,%d> has no parent in snapshot", ErrStructure, n.l, n.v)
		}
		n.parent = parent
		if n.v%2 == 0 {
			n.pos = PosLeft
			parent.lchild = n
		} else {
			n.pos = PosRight
			parent.rchild = n
		}
	}
	if t.root == nil {
		return nil, fmt.Errorf("%w: snapshot has no root", ErrStructure)
	}

	if err := t.findMe(); err != nil {
		return nil, err
	}
	if err := t.keyGeneration(); err != nil {
		return nil, err
	}
	t.refreshPath = t.myNode.KeyPath()

	fmt.Fprintf(t.out, "MEM %d: joined via snapshot (%d members)\n", t.uid, t.size)
	return t, nil
}

// Size returns the number of live members when the tree was last built
// or mutated to reflect a join/leave.
func (t *Tree) Size() int { return t.size }

// UID is this tree owner's member id.
func (t *Tree) UID() int { return t.uid }

// Height is floor(log2(2*Size()-1)), the height of the canonical initial
// shape for Size() members (root at 0). After joins and leaves the
// deepest leaf can sit below this level.
func (t *Tree) Height() int { return t.height }

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.root }

// MyNode returns this member's own leaf.
func (t *Tree) MyNode() *Node { return t.myNode }

// NextMemberID returns the id that will be assigned to the next joiner.
func (t *Tree) NextMemberID() int { return t.nextMemberID }

// RefreshPath returns the nodes whose keys were invalidated by the most
// recent mutation (spec.md Glossary "Refresh path").
func (t *Tree) RefreshPath() []*Node { return t.refreshPath }

// addChildren attaches two fresh internal-node children to cur
// (spec.md §4.2 "add_nodes").
func (t *Tree) addChildren(cur *Node) {
	l := newNode(t.params, NodeInter)
	l.parent = cur
	l.pos = PosLeft
	l.recalcPosition()

	r := newNode(t.params, NodeInter)
	r.parent = cur
	r.pos = PosRight
	r.recalcPosition()

	cur.lchild = l
	cur.rchild = r
}

// buildShape constructs the canonical left-packed initial shape
// (spec.md §4.2 "Initial shape"): height h = floor(log2(2*size-1)); all
// leaves on level h or h-1; a deeper leaf is always to the left of a
// shallower leaf at the same level.
//
// Construction: lay out a perfect binary tree of height h-1 (its
// 2^(h-1) leaves, left to right), then split the leftmost x of those
// leaves into two level-h children each, where x = size - 2^(h-1).
// That yields exactly `size` leaves split across levels h and h-1 with
// every depth-h leaf to the left of every depth-(h-1) leaf.
func (t *Tree) buildShape() {
	t.root = newNode(t.params, NodeRoot)
	t.root.pos = PosNA
	t.root.recalcPosition()

	perfectHeight := t.height - 1
	if perfectHeight < 0 {
		// size == 1 would give nodeMax == 1 and height 0; NewTree
		// already rejects size < 2, so this never happens.
		perfectHeight = 0
	}
	t.buildPerfect(t.root, perfectHeight)

	skeleton := t.preOrderLeaves(t.root)
	x := t.size - (1 << uint(perfectHeight))
	for i := 0; i < x && i < len(skeleton); i++ {
		t.addChildren(skeleton[i])
	}
}

// buildPerfect grows a perfect binary subtree of the given remaining
// depth under node, recursing to depth 0.
func (t *Tree) buildPerfect(node *Node, remainingDepth int) {
	if remainingDepth == 0 {
		return
	}
	t.addChildren(node)
	t.buildPerfect(node.lchild, remainingDepth-1)
	t.buildPerfect(node.rchild, remainingDepth-1)
}

// preOrderNodes returns every node under (and including) root in
// pre-order (self, left subtree, right subtree).
func (t *Tree) preOrderNodes(root *Node) []*Node {
	if root == nil {
		return nil
	}
	nodes := []*Node{root}
	nodes = append(nodes, t.preOrderNodes(root.lchild)...)
	nodes = append(nodes, t.preOrderNodes(root.rchild)...)
	return nodes
}

// preOrderLeaves returns the leaves under root, left to right.
func (t *Tree) preOrderLeaves(root *Node) []*Node {
	var leaves []*Node
	for _, n := range t.preOrderNodes(root) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// rightmostLeaf walks right children from node until it hits a leaf.
func rightmostLeaf(node *Node) *Node {
	cur := node
	for !cur.IsLeaf() {
		cur = cur.rchild
	}
	return cur
}

// leftmostLeaf walks left children from node until it hits a leaf.
func leftmostLeaf(node *Node) *Node {
	cur := node
	for !cur.IsLeaf() {
		cur = cur.lchild
	}
	return cur
}

// typeAssignLeaves tags every current leaf as an ordinary member
// (spec.md §4.2 "type_assign").
func (t *Tree) typeAssignLeaves() {
	for _, leaf := range t.preOrderLeaves(t.root) {
		leaf.ntype = NodeMember
	}
}

// idAssign assigns member ids 1..size to the leaves in left-to-right
// order. Every member builds the identical shape (buildShape is
// deterministic in size alone) and walks leaves in the same order, so
// this reproduces the same id-to-leaf mapping everywhere (spec.md §4.2,
// Property 1).
func (t *Tree) idAssign() {
	for i, leaf := range t.preOrderLeaves(t.root) {
		mid := i + 1
		leaf.mid = &mid
	}
}

// findMe locates this tree owner's leaf by uid.
func (t *Tree) findMe() error {
	n, err := t.FindByMID(t.uid)
	if err != nil {
		return fmt.Errorf("findMe: %w", err)
	}
	t.myNode = n
	return nil
}

// keyGeneration generates a private and blinded key for this member's
// own node only (spec.md §4.2 "key_generation").
func (t *Tree) keyGeneration() error {
	if err := t.myNode.GenPrivateKey(t.scalarSource); err != nil {
		return err
	}
	return t.myNode.GenBlindKey()
}

// FindByMID returns the unique leaf carrying member id m.
func (t *Tree) FindByMID(m int) (*Node, error) {
	for _, n := range t.preOrderNodes(t.root) {
		if n.mid != nil && *n.mid == m {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: member %d", ErrNotFound, m)
}

// FindByName returns the unique node named <l,v>.
func (t *Tree) FindByName(l, v int) (*Node, error) {
	for _, n := range t.preOrderNodes(t.root) {
		if n.l == l && n.v == v {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: node <%d,%d>", ErrNotFound, l, v)
}

// OwnerMID returns the member id of the leftmost leaf beneath n: the
// member responsible for publishing n's blinded key (spec.md §4.3,
// grounded on the reference's `dest_node.leaves[0].mid`).
func (t *Tree) OwnerMID(n *Node) (int, error) {
	leaf := leftmostLeaf(n)
	if leaf.mid == nil {
		return 0, fmt.Errorf("%w: node %s has no owning member", ErrStructure, n.Name())
	}
	return *leaf.mid, nil
}

// FindInsertion returns the rightmost leaf on the shallowest leaf level,
// ties broken by larger v (spec.md §4.2 "Insertion point for join").
func (t *Tree) FindInsertion() (*Node, error) {
	leaves := t.preOrderLeaves(t.root)
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: tree has no leaves", ErrStructure)
	}
	shallowest := leaves[0].l
	for _, n := range leaves {
		if n.l < shallowest {
			shallowest = n.l
		}
	}
	var best *Node
	for _, n := range leaves {
		if n.l != shallowest {
			continue
		}
		if best == nil || n.v > best.v {
			best = n
		}
	}
	return best, nil
}

// recalcAllPositions recomputes l/v for every node from the root down,
// restoring invariant 3 (position consistency) after a structural
// mutation.
func (t *Tree) recalcAllPositions() {
	t.root.pos = PosNA
	t.root.recalcPosition()
	var walk func(*Node)
	walk = func(n *Node) {
		if n.lchild != nil {
			n.lchild.recalcPosition()
			walk(n.lchild)
		}
		if n.rchild != nil {
			n.rchild.recalcPosition()
			walk(n.rchild)
		}
	}
	walk(t.root)
}

// Join grows the tree by one member: it attaches two new leaves at the
// insertion point, turns the insertion leaf into the sponsor, and
// assigns a fresh id to the new member (spec.md §4.2 "Join mutation").
// Every live member's Tree calls Join once; afterward exactly one of
// them finds its own node tagged NodeSponsor.
func (t *Tree) Join() error {
	insertion, err := t.FindInsertion()
	if err != nil {
		return err
	}

	t.addChildren(insertion)
	sponsorLeaf := insertion.lchild
	newMemberLeaf := insertion.rchild

	sponsorLeaf.MarkSponsor(insertion.mid, insertion.key, insertion.bkey, true)
	insertion.MarkInsertion()

	newID := t.nextMemberID
	newMemberLeaf.MarkNewMember(newID)
	t.nextMemberID++
	t.size++

	t.recalcAllPositions()
	t.refreshPath = newMemberLeaf.KeyPath()

	for _, leaf := range t.preOrderLeaves(t.root) {
		if leaf != sponsorLeaf {
			leaf.ntype = NodeMember
		}
	}
	t.nodeMax = 2*t.size - 1
	t.height = int(math.Floor(math.Log2(float64(t.nodeMax))))

	return t.findMe()
}

// Leave removes member eid from the tree, promoting its sibling's
// subtree and designating a fresh sponsor (spec.md §4.2 "Leave
// mutation"). If removing eid would leave a single member, it returns
// ErrGroupEmpty and leaves the tree untouched.
func (t *Tree) Leave(eid int) error {
	if t.root.lchild != nil && t.root.rchild != nil &&
		t.root.lchild.IsLeaf() && t.root.rchild.IsLeaf() && t.size <= 2 {
		return fmt.Errorf("%w: removing member %d", ErrGroupEmpty, eid)
	}

	leaving, err := t.FindByMID(eid)
	if err != nil {
		return err
	}
	if leaving.parent == nil {
		return fmt.Errorf("%w: member %d is the root", ErrStructure, eid)
	}

	sibling, err := leaving.Sibling()
	if err != nil {
		return err
	}

	var sponsor *Node
	if leaving.parent.ntype == NodeRoot {
		sibling.PromoteToRoot()
		t.root = sibling
		sponsor = rightmostLeaf(t.root)
	} else {
		parent := leaving.parent
		parent.AbsorbFrom(sibling)
		sponsor = rightmostLeaf(parent)
	}

	for _, leaf := range t.preOrderLeaves(t.root) {
		if leaf != sponsor {
			leaf.ntype = NodeMember
		}
	}
	sponsor.MarkSponsor(nil, nil, nil, false)
	sponsor.key = nil
	sponsor.bkey = nil

	t.size--
	t.nodeMax = 2*t.size - 1
	t.recalcAllPositions()
	t.height = int(math.Floor(math.Log2(float64(t.nodeMax))))
	t.refreshPath = sponsor.KeyPath()

	return t.findMe()
}

// GetUpdatePath returns refreshPath ∩ this member's co-path: the
// blinded keys this member still needs to receive after a mutation
// (spec.md §4.2 "Refresh-path intersection").
func (t *Tree) GetUpdatePath() []*Node {
	refresh := make(map[*Node]struct{}, len(t.refreshPath))
	for _, n := range t.refreshPath {
		refresh[n] = struct{}{}
	}
	var update []*Node
	for _, n := range t.myNode.CoPath() {
		if _, ok := refresh[n]; ok {
			update = append(update, n)
		}
	}
	return update
}

// AdvanceGroupKey runs at most maxIters steps of the recurrence,
// matching the original's bounded initial_calculate_group_key used
// during the level-by-level initial exchange (spec.md §4.2).
func (t *Tree) AdvanceGroupKey(maxIters int) error {
	return t.runRecurrence(maxIters)
}

// CalculateGroupKey runs the recurrence to completion (or until a
// co-path blinded key is missing), matching calculate_group_key
// (spec.md §4.2).
func (t *Tree) CalculateGroupKey() error {
	return t.runRecurrence(-1)
}

// runRecurrence implements spec.md §4.2 "Recurrence":
//
//	key_path[i+1].key = co_path[i].bkey ^ key_path[i].key mod p
//	key_path[i+1].bkey = g ^ key_path[i+1].key mod p   (except for root)
//
// A negative maxIters means unbounded.
func (t *Tree) runRecurrence(maxIters int) error {
	keyPath := t.myNode.KeyPath()
	coPath := t.myNode.CoPath()

	for i, sib := range coPath {
		if maxIters >= 0 && i >= maxIters {
			break
		}
		if sib.bkey == nil {
			return fmt.Errorf("%w: co-path node %s", ErrMissingBlindKey, sib.Name())
		}
		if keyPath[i].key == nil {
			return fmt.Errorf("%w: key-path node %s", ErrMissingBlindKey, keyPath[i].Name())
		}
		parent := keyPath[i+1]
		parent.key = crypto.DeriveKey(t.params, sib.bkey, keyPath[i].key)
		if parent.ntype != NodeRoot {
			if err := parent.GenBlindKey(); err != nil {
				return err
			}
		}
	}
	return nil
}

// RegenerateSponsorKey draws a fresh private key for this member's own
// node and recomputes its blinded key, used by the sponsor after a
// leave mutation (spec.md §4.2 "Sponsor role").
func (t *Tree) RegenerateSponsorKey() error {
	return t.keyGeneration()
}

// GroupKey returns the current root private key, or nil if the
// recurrence hasn't reached the root yet.
func (t *Tree) GroupKey() *big.Int {
	return t.root.key
}

// String renders the tree for debugging, in the style of the
// original's tree_print: one line per node with its name, type,
// member id and key material.
func (t *Tree) String() string {
	var b []byte
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		for i := 0; i < depth; i++ {
			b = append(b, ' ', ' ')
		}
		midStr := "-"
		if n.mid != nil {
			midStr = fmt.Sprintf("%d", *n.mid)
		}
		line := fmt.Sprintf("%s type=%s mid=%s key=%v bkey=%v\n", n.Name(), n.ntype, midStr, n.key, n.bkey)
		b = append(b, line...)
		if n.lchild != nil {
			walk(n.lchild, depth+1)
		}
		if n.rchild != nil {
			walk(n.rchild, depth+1)
		}
	}
	walk(t.root, 0)
	return string(b)
}
