// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the commit DAG algorithms of §4.10: lowest
// common ancestor (merge-base) and the three-way merge it feeds.
package graph

import (
	"context"

	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// flag marks which side(s) of a merge-base search have reached a commit.
type flag uint8

const (
	flagA flag = 1 << iota
	flagB
)

// MergeBase returns the set of lowest common ancestors of a and b (§4.10):
// commits reachable from both that have no descendant also reachable from
// both. Mirrors classical git merge-base: BFS from both tips marking
// parents with a per-side flag, memoized per commit to stay linear in the
// number of edges even in diamond-heavy histories (§4.10 edge case: "must be
// memoized per call to avoid O(2^n)").
func MergeBase(ctx context.Context, b object.Backend, a, bHash plumbing.Hash) ([]plumbing.Hash, error) {
	if a == bHash {
		return []plumbing.Hash{a}, nil
	}

	flags := make(map[plumbing.Hash]flag)
	parentsOf := make(map[plumbing.Hash][]plumbing.Hash)

	queue := []plumbing.Hash{a, bHash}
	flags[a] |= flagA
	flags[bHash] |= flagB

	// BFS over the union of both histories, recording parent edges as they
	// are discovered so candidate filtering below can walk them again
	// without re-fetching objects.
	for i := 0; i < len(queue); i++ {
		h := queue[i]
		parents, ok := parentsOf[h]
		if !ok {
			c, err := b.Commit(ctx, h)
			if err != nil {
				if plumbing.IsNoSuchObject(err) {
					continue
				}
				return nil, err
			}
			parents = c.Parents
			parentsOf[h] = parents
		}
		for _, p := range parents {
			before := flags[p]
			flags[p] |= flags[h]
			if flags[p] != before {
				queue = append(queue, p)
			}
		}
	}

	var candidates []plumbing.Hash
	for h, f := range flags {
		if f == flagA|flagB {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Remove candidates reachable from another candidate: those are common
	// ancestors but not *lowest* ones (§4.10 step 3).
	candidateSet := make(map[plumbing.Hash]bool, len(candidates))
	for _, h := range candidates {
		candidateSet[h] = true
	}
	reachableFromOther := make(map[plumbing.Hash]bool)
	for _, start := range candidates {
		visited := make(map[plumbing.Hash]bool)
		stack := append([]plumbing.Hash{}, parentsOf[start]...)
		for len(stack) > 0 {
			h := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[h] {
				continue
			}
			visited[h] = true
			if candidateSet[h] {
				reachableFromOther[h] = true
			}
			stack = append(stack, parentsOf[h]...)
		}
	}

	result := make([]plumbing.Hash, 0, len(candidates))
	for _, h := range candidates {
		if !reachableFromOther[h] {
			result = append(result, h)
		}
	}
	plumbing.HashesSort(result)
	return result, nil
}
