package registry

import "strings"

// RouteIndex is a longest-prefix matcher over '/'-segment-bounded paths
// (§3, §4.1). It is a small prefix tree keyed by path segment, not a regex
// matcher the way app/discovery's Service.Match is - there are no priorities
// or wildcard servers to juggle here, just "does this path start with a
// registered prefix at a segment boundary, and if several do, which is
// longest".
type RouteIndex struct {
	root *routeNode
}

type routeNode struct {
	children map[string]*routeNode
	terminal bool
	name     string // plugin name, valid iff terminal
}

func newRouteNode() *routeNode {
	return &routeNode{children: make(map[string]*routeNode)}
}

// NewRouteIndex returns an empty RouteIndex.
func NewRouteIndex() *RouteIndex {
	return &RouteIndex{root: newRouteNode()}
}

// Insert installs prefix (already the effective prefix, e.g. "_foo" or
// "v1/foo") as owned by name. Both "/"+prefix and "/"+prefix+"/*" then
// resolve to name.
func (idx *RouteIndex) Insert(prefix, name string) {
	node := idx.root
	for _, seg := range splitPath(prefix) {
		child, ok := node.children[seg]
		if !ok {
			child = newRouteNode()
			node.children[seg] = child
		}
		node = child
	}
	node.terminal = true
	node.name = name
}

// Match finds the longest registered prefix that is a path prefix of path,
// at a segment boundary, and returns the owning plugin's name.
func (idx *RouteIndex) Match(path string) (string, bool) {
	node := idx.root
	best, found := "", false

	for _, seg := range splitPath(path) {
		child, ok := node.children[seg]
		if !ok {
			break
		}
		node = child
		if node.terminal {
			best, found = node.name, true
		}
	}
	return best, found
}

// splitPath trims leading/trailing '/' and splits on '/', dropping empty
// segments so "/_foo/" and "/_foo" produce the same segment list.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
