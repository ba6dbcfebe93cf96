package router

import (
	"sync"

	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
)

const (
	// maxArenaTokens bounds the visited arrays; token IDs beyond it fall
	// back to "unvisited" and are simply not explored.
	maxArenaTokens = 8192

	maxPathHops = 8
)

type searchGen uint32

// searchArena is a pooled scratch space for path enumeration. Visited state
// uses generation stamping, so reuse is O(1) instead of clearing arrays.
type searchArena struct {
	fwdGen []searchGen
	bwdGen []searchGen
	gen    searchGen

	fwdParent []int32
	bwdParent []int32

	fwdFrontier []graph.TokenID
	bwdFrontier []graph.TokenID
	nextBuf     []graph.TokenID
	pathBuf     []graph.TokenID

	paths [][]graph.TokenID
}

var arenaPool = sync.Pool{
	New: func() interface{} {
		return &searchArena{
			fwdGen:      make([]searchGen, maxArenaTokens),
			bwdGen:      make([]searchGen, maxArenaTokens),
			fwdParent:   make([]int32, maxArenaTokens),
			bwdParent:   make([]int32, maxArenaTokens),
			fwdFrontier: make([]graph.TokenID, 0, 1024),
			bwdFrontier: make([]graph.TokenID, 0, 1024),
			nextBuf:     make([]graph.TokenID, 0, 1024),
			pathBuf:     make([]graph.TokenID, 0, maxPathHops+1),
			gen:         1,
		}
	},
}

func getArena() *searchArena {
	return arenaPool.Get().(*searchArena)
}

func putArena(a *searchArena) {
	a.gen++
	if a.gen == 0 {
		for i := range a.fwdGen {
			a.fwdGen[i] = 0
			a.bwdGen[i] = 0
		}
		a.gen = 1
	}
	a.fwdFrontier = a.fwdFrontier[:0]
	a.bwdFrontier = a.bwdFrontier[:0]
	a.paths = nil
	arenaPool.Put(a)
}

func (a *searchArena) fwdVisited(id graph.TokenID) bool {
	return int(id) < len(a.fwdGen) && a.fwdGen[id] == a.gen
}

func (a *searchArena) bwdVisited(id graph.TokenID) bool {
	return int(id) < len(a.bwdGen) && a.bwdGen[id] == a.gen
}

func (a *searchArena) markFwd(id graph.TokenID, parent int32) bool {
	if int(id) >= len(a.fwdGen) {
		return false
	}
	a.fwdGen[id] = a.gen
	a.fwdParent[id] = parent
	return true
}

func (a *searchArena) markBwd(id graph.TokenID, parent int32) bool {
	if int(id) >= len(a.bwdGen) {
		return false
	}
	a.bwdGen[id] = a.gen
	a.bwdParent[id] = parent
	return true
}

// buildPath stitches the forward chain to the meeting point with the
// backward chain away from it.
func (a *searchArena) buildPath(meet graph.TokenID) []graph.TokenID {
	a.pathBuf = a.pathBuf[:0]
	for id := meet; ; {
		a.pathBuf = append(a.pathBuf, id)
		p := a.fwdParent[id]
		if p < 0 {
			break
		}
		id = graph.TokenID(p)
	}

	path := make([]graph.TokenID, 0, len(a.pathBuf)+4)
	for i := len(a.pathBuf) - 1; i >= 0; i-- {
		path = append(path, a.pathBuf[i])
	}
	for p := a.bwdParent[meet]; p >= 0; p = a.bwdParent[p] {
		path = append(path, graph.TokenID(p))
	}
	return path
}

func pathsEqual(a, b []graph.TokenID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsPath(paths [][]graph.TokenID, p []graph.TokenID) bool {
	for i := len(paths) - 1; i >= 0; i-- {
		if pathsEqual(paths[i], p) {
			return true
		}
	}
	return false
}
