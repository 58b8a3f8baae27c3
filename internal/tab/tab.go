// Package tab implements the binary split-tree layout that composes
// panes within one tab (spec.md §4.4).
package tab

import (
	"fmt"
	"sync"

	"scarabd/internal/domain"
	"scarabd/internal/pane"
)

// Direction is a split orientation.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

// node is one element of the split tree: either a Leaf naming a pane, or
// a Split with two children.
type node struct {
	// Leaf fields.
	paneID pane.ID

	// Split fields.
	dir         Direction
	ratio       float64
	left, right *node
}

func leaf(id pane.ID) *node { return &node{paneID: id} }

func (n *node) isLeaf() bool { return n.left == nil && n.right == nil }

// Tab owns a set of panes arranged in a binary split tree.
type Tab struct {
	ID    uint64
	Title string

	mu       sync.RWMutex
	root     *node
	activeID pane.ID
	panes    map[pane.ID]*pane.Pane

	dom        domain.Domain
	nextPane   pane.ID
	defaultCfg func() pane.Config
}

// New creates a Tab with one initial pane spawned via dom.
func New(id uint64, title string, dom domain.Domain, defaultCfg func() pane.Config) (*Tab, error) {
	t := &Tab{
		ID:         id,
		Title:      title,
		panes:      make(map[pane.ID]*pane.Pane),
		dom:        dom,
		defaultCfg: defaultCfg,
	}
	p0, err := t.spawnPane(defaultCfg())
	if err != nil {
		return nil, fmt.Errorf("create tab %d: %w", id, err)
	}
	t.root = leaf(p0.ID)
	t.activeID = p0.ID
	return t, nil
}

func (t *Tab) spawnPane(cfg pane.Config) (*pane.Pane, error) {
	t.nextPane++
	id := t.nextPane
	p, err := pane.Spawn(id, t.dom, cfg)
	if err != nil {
		return nil, err
	}
	t.panes[id] = p
	return p, nil
}

// ActivePane returns the currently focused pane.
func (t *Tab) ActivePane() (*pane.Pane, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.panes[t.activeID]
	if !ok {
		return nil, fmt.Errorf("tab %d: active pane %d not found", t.ID, t.activeID)
	}
	return p, nil
}

// Pane looks up a pane by id.
func (t *Tab) Pane(id pane.ID) (*pane.Pane, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.panes[id]
	if !ok {
		return nil, fmt.Errorf("tab %d: pane %d not found", t.ID, id)
	}
	return p, nil
}

// SplitActive replaces the leaf containing the active pane with a
// Split(direction, 0.5, original_leaf, Leaf(new_pane)). The new pane is
// spawned with the tab's default pane config; neither pane is resized to
// its share of the split until the next Resize.
func (t *Tab) SplitActive(dir Direction) (pane.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := findLeaf(t.root, t.activeID)
	if target == nil {
		return 0, fmt.Errorf("tab %d: active pane %d not in tree", t.ID, t.activeID)
	}

	cfg := t.defaultCfg()
	newPane, err := t.spawnPane(cfg)
	if err != nil {
		return 0, fmt.Errorf("tab %d: split_active: %w", t.ID, err)
	}

	original := leaf(target.paneID)
	split := &node{dir: dir, ratio: 0.5, left: original, right: leaf(newPane.ID)}
	*target = *split

	t.activeID = newPane.ID
	return newPane.ID, nil
}

// ClosePane destroys the named pane and replaces its containing Split
// with its sibling subtree. If the closed pane was active, a deterministic
// neighbour (in-order successor, else predecessor) becomes active.
func (t *Tab) ClosePane(id pane.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root.isLeaf() {
		return fmt.Errorf("tab %d: cannot close its only pane", t.ID)
	}

	parent, target, isLeftChild := findWithParent(t.root, nil, false, id)
	if target == nil {
		return fmt.Errorf("tab %d: pane %d not found", t.ID, id)
	}

	p, ok := t.panes[id]
	if ok {
		if err := p.Close(); err != nil {
			return fmt.Errorf("tab %d: close pane %d: %w", t.ID, id, err)
		}
		delete(t.panes, id)
	}

	wasActive := t.activeID == id
	var successor, predecessor pane.ID
	if wasActive {
		successor = inOrderSuccessor(t.root, id)
		predecessor = inOrderPredecessor(t.root, id)
	}

	var sibling *node
	if parent != nil {
		if isLeftChild {
			sibling = parent.right
		} else {
			sibling = parent.left
		}
		*parent = *sibling
	} else {
		// target was the tree root itself — impossible when root isn't a
		// leaf and id matched the root's own paneID — guarded above.
		return fmt.Errorf("tab %d: pane %d has no parent split", t.ID, id)
	}

	if wasActive {
		switch {
		case successor != 0:
			t.activeID = successor
		case predecessor != 0:
			t.activeID = predecessor
		default:
			t.activeID = firstLeaf(t.root)
		}
	}
	return nil
}

// Focus sets the active pane; it must already exist in the tree.
func (t *Tab) Focus(id pane.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if findLeaf(t.root, id) == nil {
		return fmt.Errorf("tab %d: focus: pane %d not found", t.ID, id)
	}
	t.activeID = id
	return nil
}

// Resize recurses the split tree: each split allocates floor(ratio*size)
// to its left/top child and the remainder to right/bottom; each leaf
// calls Pane.Resize.
func (t *Tab) Resize(cols, rows int) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resizeNode(t.root, cols, rows)
}

func (t *Tab) resizeNode(n *node, cols, rows int) error {
	if n.isLeaf() {
		p, ok := t.panes[n.paneID]
		if !ok {
			return fmt.Errorf("tab %d: resize: pane %d missing", t.ID, n.paneID)
		}
		return p.Resize(cols, rows)
	}
	switch n.dir {
	case Horizontal:
		leftCols := int(float64(cols) * n.ratio)
		if err := t.resizeNode(n.left, leftCols, rows); err != nil {
			return err
		}
		return t.resizeNode(n.right, cols-leftCols, rows)
	default: // Vertical
		topRows := int(float64(rows) * n.ratio)
		if err := t.resizeNode(n.left, cols, topRows); err != nil {
			return err
		}
		return t.resizeNode(n.right, cols, rows-topRows)
	}
}

// ActiveID reports the currently focused pane id.
func (t *Tab) ActiveID() pane.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeID
}

// PaneIDs lists every pane currently in the split tree, in-order.
func (t *Tab) PaneIDs() []pane.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []pane.ID
	collectInOrder(t.root, &ids)
	return ids
}

func findLeaf(n *node, id pane.ID) *node {
	if n == nil {
		return nil
	}
	if n.isLeaf() {
		if n.paneID == id {
			return n
		}
		return nil
	}
	if found := findLeaf(n.left, id); found != nil {
		return found
	}
	return findLeaf(n.right, id)
}

// findWithParent returns the node matching id and its direct parent
// (nil if id is the tree root), plus whether it's the parent's left
// child.
func findWithParent(n, parent *node, isLeft bool, id pane.ID) (*node, *node, bool) {
	if n == nil {
		return nil, nil, false
	}
	if n.isLeaf() {
		if n.paneID == id {
			return parent, n, isLeft
		}
		return nil, nil, false
	}
	if p, found, left := findWithParent(n.left, n, true, id); found != nil {
		return p, found, left
	}
	return findWithParent(n.right, n, false, id)
}

func collectInOrder(n *node, out *[]pane.ID) {
	if n == nil {
		return
	}
	if n.isLeaf() {
		*out = append(*out, n.paneID)
		return
	}
	collectInOrder(n.left, out)
	collectInOrder(n.right, out)
}

func firstLeaf(n *node) pane.ID {
	if n == nil {
		return 0
	}
	if n.isLeaf() {
		return n.paneID
	}
	return firstLeaf(n.left)
}

func inOrderSuccessor(root *node, id pane.ID) pane.ID {
	var ids []pane.ID
	collectInOrder(root, &ids)
	for i, v := range ids {
		if v == id && i+1 < len(ids) {
			return ids[i+1]
		}
	}
	return 0
}

func inOrderPredecessor(root *node, id pane.ID) pane.ID {
	var ids []pane.ID
	collectInOrder(root, &ids)
	for i, v := range ids {
		if v == id && i > 0 {
			return ids[i-1]
		}
	}
	return 0
}
