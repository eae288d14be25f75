package extract

import (
	"fmt"
	"sort"
	"strings"
)

// buildFileTree renders a depth-limited textual listing of the walked paths.
// Directories past maxDepth collapse into a "..." entry, and the whole
// listing is capped at maxLines with a continuation marker.
func buildFileTree(paths []string, maxDepth, maxLines int) string {
	type node struct {
		children map[string]*node
		file     bool
		more     bool // descendants collapsed by the depth limit
	}
	root := &node{children: map[string]*node{}}

	for _, p := range paths {
		parts := strings.Split(p, "/")
		cur := root
		for i, part := range parts {
			if i >= maxDepth {
				cur.more = true
				break
			}
			child, ok := cur.children[part]
			if !ok {
				child = &node{children: map[string]*node{}}
				cur.children[part] = child
			}
			if i == len(parts)-1 {
				child.file = true
			}
			cur = child
		}
	}

	var lines []string
	var render func(n *node, prefix string)
	render = func(n *node, prefix string) {
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			a, b := n.children[names[i]], n.children[names[j]]
			if a.file != b.file {
				return !a.file // directories first
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			child := n.children[name]
			if child.file && len(child.children) == 0 && !child.more {
				lines = append(lines, prefix+name)
				continue
			}
			lines = append(lines, prefix+name+"/")
			render(child, prefix+"  ")
			if child.more {
				lines = append(lines, prefix+"  ...")
			}
		}
	}
	render(root, "")

	if len(lines) > maxLines {
		omitted := len(lines) - maxLines
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more entries)", omitted))
	}
	return strings.Join(lines, "\n")
}
