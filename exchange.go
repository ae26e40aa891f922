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
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentPublishes bounds how many round publishes a single
// runInitialRound fan-out runs at once. The round still starts one
// goroutine per active member and opens every subscription before any
// publish; only the publishes themselves wait on this limit.
const maxConcurrentPublishes = 64

// Coordinator drives the round-structured key exchange schedule across a
// set of member Trees over a Transport (spec.md §4.3, grounded on
// member_agent.py's MemberAgent). It holds no cryptographic material of
// its own; every round it only shuttles already-computed blinded-key
// messages between members and tells each Tree when to advance its
// local recurrence. mu serializes exchanges: the protocol assumes one
// mutation's exchange fully completes before the next begins (spec.md
// §9, "Concurrent joins/leaves"), so Coordinator refuses to let two
// exchanges race over the same member set.
type Coordinator struct {
	transport Transport
	publishes *semaphore.Weighted

	mu sync.Mutex
}

// NewCoordinator returns a Coordinator driving rounds over transport.
func NewCoordinator(transport Transport) *Coordinator {
	return &Coordinator{
		transport: transport,
		publishes: semaphore.NewWeighted(maxConcurrentPublishes),
	}
}

// sortedUIDs returns trees' keys in ascending order so round iteration
// is deterministic across runs.
func sortedUIDs(trees map[int]*Tree) []int {
	uids := make([]int, 0, len(trees))
	for uid := range trees {
		uids = append(uids, uid)
	}
	sort.Ints(uids)
	return uids
}

// deliverInto reads one message from ch and installs its blinded key
// into the matching node of tr.
func deliverInto(ctx context.Context, ch <-chan string, tr *Tree) error {
	select {
	case raw, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: topic closed before delivery", ErrTransport)
		}
		name, bkey, err := parseKeyMessage(raw)
		if err != nil {
			return err
		}
		l, v, err := parseNodeName(name)
		if err != nil {
			return err
		}
		target, err := tr.FindByName(l, v)
		if err != nil {
			return err
		}
		target.SetBlindKey(bkey)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// containsNodeName reports whether path holds a node named name.
func containsNodeName(path []*Node, name string) bool {
	for _, n := range path {
		if n.Name() == name {
			return true
		}
	}
	return false
}

// RunInitialExchange drives the initial key exchange for a freshly built
// group to completion: exactly Height() rounds, each combining one more
// level of the tree, bottom-up (spec.md §4.3 "Initial exchange",
// grounded on member_agent.py's initial_key_exchange). trees must all
// have been constructed by NewTree with the same size and distinct uids.
func (c *Coordinator) RunInitialExchange(ctx context.Context, trees map[int]*Tree) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	uids := sortedUIDs(trees)
	if len(uids) == 0 {
		return fmt.Errorf("%w: no members", ErrGroupEmpty)
	}
	height := trees[uids[0]].Height()

	for round := 0; round < height; round++ {
		if err := c.runInitialRound(ctx, trees, uids, round, height); err != nil {
			return fmt.Errorf("initial exchange round %d: %w", round, err)
		}
	}
	return nil
}

// runInitialRound executes one level of the initial exchange. A member
// whose leaf sits at depth D only has work to do starting at round
// height-D (it has nothing to publish or receive before then), mirroring
// the front-padding the reference applies to its key/co-path lists.
func (c *Coordinator) runInitialRound(ctx context.Context, trees map[int]*Tree, uids []int, round, height int) error {
	for _, uid := range uids {
		if err := c.transport.Bind(memberTopic(uid)); err != nil {
			return err
		}
	}

	type active struct {
		uid        int
		localIndex int
	}
	var actives []active
	for _, uid := range uids {
		depth := trees[uid].MyNode().L()
		offset := height - depth
		if round < offset {
			continue
		}
		actives = append(actives, active{uid: uid, localIndex: round - offset})
	}

	subs := make(map[int]<-chan string, len(actives))
	for _, a := range actives {
		coPath := trees[a.uid].MyNode().CoPath()
		target := coPath[a.localIndex]
		ownerUID, err := trees[a.uid].OwnerMID(target)
		if err != nil {
			return err
		}
		ch, err := c.transport.Connect(memberTopic(ownerUID))
		if err != nil {
			return err
		}
		subs[a.uid] = ch
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actives {
		a := a
		g.Go(func() error {
			if err := c.publishes.Acquire(gctx, 1); err != nil {
				return err
			}
			defer c.publishes.Release(1)

			keyPath := trees[a.uid].MyNode().KeyPath()
			msg, err := formatKeyMessage(keyPath[a.localIndex])
			if err != nil {
				return err
			}
			return c.transport.Publish(memberTopic(a.uid), msg)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, a := range actives {
		if err := deliverInto(gctx, subs[a.uid], trees[a.uid]); err != nil {
			return fmt.Errorf("member %d: %w", a.uid, err)
		}
	}

	c.transport.CloseAll()

	for _, a := range actives {
		if err := trees[a.uid].AdvanceGroupKey(a.localIndex + 1); err != nil {
			return fmt.Errorf("member %d: %w", a.uid, err)
		}
	}
	return nil
}

// broadcastSponsorLevel publishes node's blinded key from sponsor's
// mailbox to every member in others whose update path names it, and
// installs it into each of their trees (spec.md §4.3, grounded on
// member_agent.py's join_key_exchange/leave_key_exchange inner loop).
func (c *Coordinator) broadcastSponsorLevel(ctx context.Context, sponsor *Tree, others map[int]*Tree, node *Node) error {
	topic := memberTopic(sponsor.UID())
	if err := c.transport.Bind(topic); err != nil {
		return err
	}

	type sub struct {
		uid int
		ch  <-chan string
	}
	var subs []sub
	for uid, tr := range others {
		if uid == sponsor.UID() {
			continue
		}
		if !containsNodeName(tr.GetUpdatePath(), node.Name()) {
			continue
		}
		ch, err := c.transport.Connect(topic)
		if err != nil {
			return err
		}
		subs = append(subs, sub{uid: uid, ch: ch})
	}

	msg, err := formatKeyMessage(node)
	if err != nil {
		return err
	}
	if err := c.transport.Publish(topic, msg); err != nil {
		return err
	}

	for _, s := range subs {
		if err := deliverInto(ctx, s.ch, others[s.uid]); err != nil {
			return fmt.Errorf("member %d: %w", s.uid, err)
		}
	}

	c.transport.CloseAll()
	return nil
}

// RunJoinExchange re-synchronizes the group key after a join. Every
// existing member must already have called Tree.Join, so exactly one of
// them (sponsor) is tagged NodeSponsor; newMember is the incoming
// member's Tree, typically built from the sponsor's Snapshot (spec.md
// §4.3 "Join exchange", grounded on member_agent.py's
// join_protocol/join_key_exchange).
func (c *Coordinator) RunJoinExchange(ctx context.Context, sponsor, newMember *Tree, others map[int]*Tree) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sponsorUID, newUID := sponsor.UID(), newMember.UID()

	if err := c.transport.Bind(memberTopic(newUID)); err != nil {
		return err
	}
	sponsorSub, err := c.transport.Connect(memberTopic(newUID))
	if err != nil {
		return err
	}
	msg, err := formatKeyMessage(newMember.MyNode())
	if err != nil {
		return err
	}
	if err := c.transport.Publish(memberTopic(newUID), msg); err != nil {
		return err
	}
	if err := deliverInto(ctx, sponsorSub, sponsor); err != nil {
		return fmt.Errorf("sponsor %d: %w", sponsorUID, err)
	}
	c.transport.CloseAll()

	// Both sponsor and new member already hold every other blinded key
	// on their path (the snapshot carried the rest, spec.md §5), so both
	// can finish the recurrence unassisted.
	if err := sponsor.CalculateGroupKey(); err != nil {
		return fmt.Errorf("sponsor %d: %w", sponsorUID, err)
	}
	if err := newMember.CalculateGroupKey(); err != nil {
		return fmt.Errorf("new member %d: %w", newUID, err)
	}

	// The sponsor broadcasts its refreshed key path from its parent up to
	// and including the node just below the root. Its own leaf is skipped
	// (only the new member needs it, and the snapshot carried it), and
	// the root's blinded key is never published.
	sponsorKeyPath := sponsor.MyNode().KeyPath()
	rounds := len(sponsorKeyPath) - 2
	for i := 0; i < rounds; i++ {
		if err := c.broadcastSponsorLevel(ctx, sponsor, others, sponsorKeyPath[i+1]); err != nil {
			return fmt.Errorf("join exchange round %d: %w", i, err)
		}
	}

	for uid, tr := range others {
		if uid == sponsorUID || uid == newUID {
			continue
		}
		if err := tr.CalculateGroupKey(); err != nil {
			return fmt.Errorf("member %d: %w", uid, err)
		}
	}
	return nil
}

// RunLeaveExchange re-synchronizes the group key after a leave. Every
// remaining member must already have called Tree.Leave, so exactly one
// of them (sponsor) is tagged NodeSponsor with cleared key material
// (spec.md §4.3 "Leave exchange", grounded on member_agent.py's
// leave_protocol/leave_key_exchange).
func (c *Coordinator) RunLeaveExchange(ctx context.Context, sponsor *Tree, others map[int]*Tree) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := sponsor.RegenerateSponsorKey(); err != nil {
		return fmt.Errorf("sponsor %d: %w", sponsor.UID(), err)
	}
	if err := sponsor.CalculateGroupKey(); err != nil {
		return fmt.Errorf("sponsor %d: %w", sponsor.UID(), err)
	}

	sponsorKeyPath := sponsor.MyNode().KeyPath()
	rounds := len(sponsorKeyPath) - 1
	for i := 0; i < rounds; i++ {
		if err := c.broadcastSponsorLevel(ctx, sponsor, others, sponsorKeyPath[i]); err != nil {
			return fmt.Errorf("leave exchange round %d: %w", i, err)
		}
	}

	for uid, tr := range others {
		if uid == sponsor.UID() {
			continue
		}
		if err := tr.CalculateGroupKey(); err != nil {
			return fmt.Errorf("member %d: %w", uid, err)
		}
	}
	return nil
}
