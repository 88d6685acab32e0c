// Package contenttree turns a directory of content files into an ordered
// hierarchy of groups (directories) and leaves (files), and flattens that
// hierarchy into a linear listing for sitemaps.
package contenttree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

var (
	// ErrNotFound is returned when the tree root does not exist.
	ErrNotFound = errors.New("contenttree: root not found")
	// ErrNotDir is returned when the tree root is not a directory.
	ErrNotDir = errors.New("contenttree: root is not a directory")
	// ErrCycle is returned when a symlinked directory points back at one of its ancestors.
	ErrCycle = errors.New("contenttree: symlink cycle")
)

// Kind distinguishes directories from files.
type Kind int

const (
	Group Kind = iota
	Leaf
)

func (k Kind) String() string {
	if k == Leaf {
		return "leaf"
	}
	return "group"
}

// MarshalText encodes the kind as "group" or "leaf".
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "group" or "leaf".
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "group":
		*k = Group
	case "leaf":
		*k = Leaf
	default:
		return fmt.Errorf("contenttree: unknown kind %q", b)
	}
	return nil
}

// Node is one directory or file in the content hierarchy.
// Path is slash-separated and relative to the tree root ("" for the root).
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Kind     Kind    `json:"kind"`
	Children []*Node `json:"children,omitempty"`
}

// BuildTree walks root and returns it as a Group node. Children are ordered by
// name, byte-wise ascending. Any filesystem error aborts the walk.
func BuildTree(root string) (*Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("contenttree: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, root)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("contenttree: resolve %s: %w", root, err)
	}

	node := &Node{Name: filepath.Base(root), Kind: Group}
	b := &builder{ancestors: map[string]bool{resolved: true}}
	if err := b.fill(node, root); err != nil {
		return nil, err
	}
	return node, nil
}

type builder struct {
	ancestors map[string]bool
}

func (b *builder) fill(parent *Node, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("contenttree: read %s: %w", dir, err)
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				return fmt.Errorf("contenttree: follow %s: %w", full, err)
			}
			isDir = info.IsDir()
		}

		child := &Node{Name: e.Name(), Path: path.Join(parent.Path, e.Name()), Kind: Leaf}
		if isDir {
			child.Kind = Group
			resolved, err := filepath.EvalSymlinks(full)
			if err != nil {
				return fmt.Errorf("contenttree: resolve %s: %w", full, err)
			}
			if b.ancestors[resolved] {
				return fmt.Errorf("%w: %s", ErrCycle, full)
			}
			b.ancestors[resolved] = true
			err = b.fill(child, full)
			delete(b.ancestors, resolved)
			if err != nil {
				return err
			}
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes below n, not counting n itself.
func (n *Node) Count() int {
	total := 0
	for _, c := range n.Children {
		total += 1 + c.Count()
	}
	return total
}

// Entry is one row of a flattened tree.
type Entry struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
	Kind  Kind   `json:"kind"`
}

// Entries is a flattened tree listing.
type Entries []Entry

// Flatten lists every node below root in pre-order: a node, then its children
// in stored order. The root itself is not included; its direct children have
// depth 0.
func Flatten(root *Node) Entries {
	out := make(Entries, 0, root.Count())
	root.Walk(func(n *Node, depth int) bool {
		if n != root {
			out = append(out, Entry{Path: n.Path, Name: n.Name, Depth: depth - 1, Kind: n.Kind})
		}
		return true
	})
	return out
}

// Leaves returns only the file entries, in their original order.
func (es Entries) Leaves() Entries {
	var out Entries
	for _, e := range es {
		if e.Kind == Leaf {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON always encodes a JSON array, never null.
func (es Entries) MarshalJSON() ([]byte, error) {
	if es == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Entry(es))
}
