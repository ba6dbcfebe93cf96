package router

import (
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
)

// findTokenPaths enumerates candidate token sequences from src to dst with
// at most maxHops edges, using bidirectional BFS over the snapshot topology.
// Vacated slots and edges marked inactive by liquidity probing do not
// contribute adjacency. Results are candidate shapes only; exact per-edge
// simulation decides which of them survive.
func findTokenPaths(snap *graph.Snapshot, src, dst graph.TokenID, maxHops, maxPaths int) [][]graph.TokenID {
	if maxHops < 1 || maxPaths < 1 || src == dst {
		return nil
	}

	a := getArena()
	defer putArena(a)

	if !a.markFwd(src, -1) || !a.markBwd(dst, -1) {
		return nil
	}
	a.fwdFrontier = append(a.fwdFrontier[:0], src)
	a.bwdFrontier = append(a.bwdFrontier[:0], dst)

	if maxHops > maxPathHops {
		maxHops = maxPathHops
	}
	depthPerSide := (maxHops + 1) / 2

	for depth := 1; depth <= depthPerSide; depth++ {
		if len(a.fwdFrontier) > 0 {
			next := a.nextBuf[:0]
			for _, id := range a.fwdFrontier {
				for _, n := range snap.Out[id] {
					if !usableNeighbor(n) || a.fwdVisited(n.To) {
						continue
					}
					if !a.markFwd(n.To, int32(id)) {
						continue
					}
					next = append(next, n.To)
					if a.bwdVisited(n.To) {
						if p := a.buildPath(n.To); len(p)-1 <= maxHops && !containsPath(a.paths, p) {
							a.paths = append(a.paths, p)
							if len(a.paths) >= maxPaths {
								return a.paths
							}
						}
					}
				}
			}
			a.fwdFrontier = append(a.fwdFrontier[:0], next...)
			if cap(next) > cap(a.nextBuf) {
				a.nextBuf = next[:0]
			}
		}

		if len(a.bwdFrontier) > 0 {
			next := a.nextBuf[:0]
			for _, id := range a.bwdFrontier {
				for _, n := range snap.In[id] {
					if !usableNeighbor(n) || a.bwdVisited(n.To) {
						continue
					}
					if !a.markBwd(n.To, int32(id)) {
						continue
					}
					next = append(next, n.To)
					if a.fwdVisited(n.To) {
						if p := a.buildPath(n.To); len(p)-1 <= maxHops && !containsPath(a.paths, p) {
							a.paths = append(a.paths, p)
							if len(a.paths) >= maxPaths {
								return a.paths
							}
						}
					}
				}
			}
			a.bwdFrontier = append(a.bwdFrontier[:0], next...)
			if cap(next) > cap(a.nextBuf) {
				a.nextBuf = next[:0]
			}
		}

		if len(a.fwdFrontier) == 0 && len(a.bwdFrontier) == 0 {
			break
		}
	}
	return a.paths
}

func usableNeighbor(n graph.Neighbor) bool {
	if n.Slot.Inactive() {
		return false
	}
	_, ok := n.Edge()
	return ok
}
