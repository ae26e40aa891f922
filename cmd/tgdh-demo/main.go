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

// Command tgdh-demo scripts a fixed sequence of joins and leaves over a
// small group and reports whether every live member converges on the
// same group key after each step, mirroring the reference
// implementation's network_demo.py without the interactive prompts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"

	"github.com/tgdh/tgdh"
)

func main() {
	size := flag.Int("size", 4, "initial group size")
	verbose := flag.Bool("v", false, "dump each tree's state after every step")
	flag.Parse()

	if err := run(*size, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "tgdh-demo:", err)
		os.Exit(1)
	}
}

func run(size int, verbose bool) error {
	ctx := context.Background()
	coord := tgdh.NewCoordinator(tgdh.NewMemTransport())

	trees := make(map[int]*tgdh.Tree, size)
	for uid := 1; uid <= size; uid++ {
		t, err := tgdh.NewTree(size, uid)
		if err != nil {
			return fmt.Errorf("build member %d: %w", uid, err)
		}
		trees[uid] = t
	}

	fmt.Printf("=== initial exchange (%d members) ===\n", size)
	if err := coord.RunInitialExchange(ctx, trees); err != nil {
		return fmt.Errorf("initial exchange: %w", err)
	}
	if err := checkConverged(trees, verbose); err != nil {
		return err
	}

	doJoin := func() error {
		sponsorUID, newUID, err := join(trees)
		if err != nil {
			return err
		}
		newMember := trees[newUID]
		delete(trees, newUID)
		fmt.Printf("=== join: member %d sponsors member %d ===\n", sponsorUID, newUID)
		if err := coord.RunJoinExchange(ctx, trees[sponsorUID], newMember, trees); err != nil {
			return fmt.Errorf("join exchange: %w", err)
		}
		trees[newUID] = newMember
		return checkConverged(trees, verbose)
	}

	doLeave := func(eid int) error {
		sponsorUID, err := leave(trees, eid)
		if err != nil {
			return err
		}
		fmt.Printf("=== leave: member %d departs, member %d sponsors ===\n", eid, sponsorUID)
		others := make(map[int]*tgdh.Tree, len(trees))
		for uid, t := range trees {
			if uid != sponsorUID {
				others[uid] = t
			}
		}
		if err := coord.RunLeaveExchange(ctx, trees[sponsorUID], others); err != nil {
			return fmt.Errorf("leave exchange: %w", err)
		}
		return checkConverged(trees, verbose)
	}

	if err := doJoin(); err != nil {
		return err
	}
	if err := doJoin(); err != nil {
		return err
	}
	if err := doLeave(3); err != nil {
		return err
	}
	if err := doLeave(2); err != nil {
		return err
	}
	if err := doJoin(); err != nil {
		return err
	}

	fmt.Println("=== done: every step converged on a shared group key ===")
	return nil
}

// join runs Tree.Join on every current member and returns the sponsor's
// and the new member's ids; the new member's freshly built Tree is added
// to trees under its id (spec.md §4.2 "Join mutation").
func join(trees map[int]*tgdh.Tree) (sponsorUID, newUID int, err error) {
	var snapshotHolder *tgdh.Tree
	for _, t := range trees {
		if err := t.Join(); err != nil {
			return 0, 0, err
		}
		if t.MyNode().Type() == tgdh.NodeSponsor {
			sponsorUID = t.UID()
			snapshotHolder = t
		}
	}
	if snapshotHolder == nil {
		return 0, 0, fmt.Errorf("no sponsor found after join")
	}

	blob, err := tgdh.EncodeSnapshot(snapshotHolder)
	if err != nil {
		return 0, 0, err
	}
	snap, err := tgdh.DecodeSnapshot(blob)
	if err != nil {
		return 0, 0, err
	}
	newMember, err := tgdh.NewTreeFromSnapshot(snap)
	if err != nil {
		return 0, 0, err
	}
	trees[newMember.UID()] = newMember
	return sponsorUID, newMember.UID(), nil
}

// leave runs Tree.Leave(eid) on every remaining member and returns the
// sponsor's id (spec.md §4.2 "Leave mutation").
func leave(trees map[int]*tgdh.Tree, eid int) (sponsorUID int, err error) {
	delete(trees, eid)
	for uid, t := range trees {
		if err := t.Leave(eid); err != nil {
			return 0, fmt.Errorf("member %d: %w", uid, err)
		}
		if t.MyNode().Type() == tgdh.NodeSponsor {
			sponsorUID = uid
		}
	}
	return sponsorUID, nil
}

// checkConverged verifies every member computed the same root key, and
// optionally dumps each tree's full state for inspection.
func checkConverged(trees map[int]*tgdh.Tree, verbose bool) error {
	var want []byte
	uids := make([]int, 0, len(trees))
	for uid := range trees {
		uids = append(uids, uid)
	}
	sort.Ints(uids)
	for _, uid := range uids {
		t := trees[uid]
		key := t.GroupKey()
		if key == nil {
			return fmt.Errorf("member %d: no group key computed", uid)
		}
		if verbose {
			fmt.Printf("--- member %d ---\n%s", uid, t.String())
			spew.Fdump(os.Stdout, t.MyNode())
		}
		if want == nil {
			want = key.Bytes()
			continue
		}
		if string(key.Bytes()) != string(want) {
			return fmt.Errorf("member %d diverged from the group key", uid)
		}
	}
	fmt.Println("group key converged across all members")
	return nil
}
