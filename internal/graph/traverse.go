package graph

import "context"

// expandFunc enumerates the destination ids of a node's outgoing edges in the
// backend's edge-enumeration order (edge insertion order for the built-in
// backends). Both backends supply one of these so the traversal below is
// written once.
type expandFunc func(ctx context.Context, id int64) ([]int64, error)

// visitFunc observes a newly discovered node and reports whether the
// traversal should keep expanding. Returning false stops the walk
// immediately, mid-round; Neighbors uses that for its limit and Path for its
// target-found short circuit.
type visitFunc func(id int64) bool

// breadthFirst walks outgoing edges from start for up to rounds hops. The
// visited set doubles as cycle protection, so cyclic graphs terminate even
// though only forward edges are stored.
func breadthFirst(ctx context.Context, start int64, rounds int, expand expandFunc, visit visitFunc) error {
	visited := map[int64]bool{start: true}
	frontier := []int64{start}

	for round := 0; round < rounds && len(frontier) > 0; round++ {
		var next []int64
		for _, id := range frontier {
			dsts, err := expand(ctx, id)
			if err != nil {
				return err
			}
			for _, dst := range dsts {
				if visited[dst] {
					continue
				}
				visited[dst] = true
				next = append(next, dst)
				if !visit(dst) {
					return nil
				}
			}
		}
		frontier = next
	}
	return nil
}

// collectNeighbors gathers up to limit node ids reachable from start within
// depth hops, in first-discovered order, excluding start itself.
func collectNeighbors(ctx context.Context, start int64, depth, limit int, expand expandFunc) ([]int64, error) {
	ids := make([]int64, 0, limit)
	err := breadthFirst(ctx, start, depth, expand, func(id int64) bool {
		ids = append(ids, id)
		return len(ids) < limit
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// shortestPath returns the node ids along the first shortest route from
// "from" to "to", inclusive of both, or nil when no route is discovered
// within maxDepth+1 rounds of expansion. The predecessor map records each
// node's BFS parent; the route is reconstructed by walking it backward from
// the target.
func shortestPath(ctx context.Context, from, to int64, maxDepth int, expand expandFunc) ([]int64, error) {
	if from == to {
		return []int64{from}, nil
	}

	prev := make(map[int64]int64)
	recording := func(ctx context.Context, id int64) ([]int64, error) {
		dsts, err := expand(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, dst := range dsts {
			if _, seen := prev[dst]; !seen && dst != from {
				prev[dst] = id
			}
		}
		return dsts, nil
	}

	found := false
	err := breadthFirst(ctx, from, maxDepth+1, recording, func(id int64) bool {
		if id == to {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var route []int64
	for at := to; ; {
		route = append(route, at)
		if at == from {
			break
		}
		at = prev[at]
	}
	for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
		route[i], route[j] = route[j], route[i]
	}
	return route, nil
}
