// Package thread turns flat comment records, each carrying its ancestor chain,
// into a forest of reply threads and keeps that forest in sync with single
// comment inserts, edits and deletions.
//
// A Forest is not safe for concurrent mutation; callers serialize Insert,
// Remove and Edit on a shared instance. Build allocates a fresh forest per
// call and may run concurrently on independent inputs.
package thread

import (
	"fmt"
	"slices"
	"time"
)

// Record is a comment as supplied by the data-access layer.
type Record struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	IsEdited    bool    `json:"is_edited"`
	AuthorID    *string `json:"author_id,omitempty"`
	AuthorName  *string `json:"author_name,omitempty"`
	AuthorImage *string `json:"author_image,omitempty"`
	// AncestorChain lists ids from the thread root down to the immediate
	// parent. Empty for top-level comments.
	AncestorChain []string  `json:"ancestor_chain"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ParentID returns the immediate parent id, or "" for a top-level comment.
func (r Record) ParentID() string {
	if len(r.AncestorChain) == 0 {
		return ""
	}
	return r.AncestorChain[len(r.AncestorChain)-1]
}

func (r Record) clone() Record {
	r.AncestorChain = slices.Clone(r.AncestorChain)
	if r.AncestorChain == nil {
		r.AncestorChain = []string{}
	}
	return r
}

// Node is a position in the forest. A node without a payload is a
// placeholder holding the place of a referenced but missing comment.
type Node struct {
	id       string
	payload  *Record
	parent   string
	children []string
}

func (n *Node) ID() string { return n.id }

// Resolved reports whether the node carries an actual comment record.
func (n *Node) Resolved() bool { return n.payload != nil }

// Payload returns a copy of the node's record; ok is false for placeholders.
func (n *Node) Payload() (Record, bool) {
	if n.payload == nil {
		return Record{}, false
	}
	return n.payload.clone(), true
}

// ParentID returns "" for top-level nodes.
func (n *Node) ParentID() string { return n.parent }

// ChildIDs returns the ordered ids of direct replies.
func (n *Node) ChildIDs() []string { return slices.Clone(n.children) }

func (n *Node) NumChildren() int { return len(n.children) }

// Forest owns the top-level threads and an id index over every node.
type Forest struct {
	roots []string
	index map[string]*Node
}

// New returns an empty forest.
func New() *Forest {
	return &Forest{index: make(map[string]*Node)}
}

// Build constructs a forest from records in input order. Malformed records
// (cycles, duplicate ids, empty ids) are skipped and returned as diagnostics;
// the rest of the forest is still built. Missing ancestors become placeholders.
func Build(records []Record) (*Forest, []error) {
	f := &Forest{index: make(map[string]*Node, len(records))}
	var diagnostics []error
	for _, rec := range records {
		if err := f.Insert(rec); err != nil {
			diagnostics = append(diagnostics, err)
		}
	}
	return f, diagnostics
}

// Insert adds a single record. If a placeholder already holds the record's
// id, it is resolved in place and moved under the parent named by the record
// when that differs from where the placeholder was materialized.
func (f *Forest) Insert(rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if cycle := chainCycle(rec); cycle != nil {
		return &CycleError{IDs: cycle}
	}

	existing, ok := f.index[rec.ID]
	if ok && existing.Resolved() {
		return &DuplicateIDError{ID: rec.ID}
	}
	if ok {
		if cycle := f.cycleThrough(existing, rec.AncestorChain); cycle != nil {
			return &CycleError{IDs: cycle}
		}
	}

	rec = rec.clone()
	parentID := f.ensureChain(rec.AncestorChain)

	if ok {
		existing.payload = &rec
		if existing.parent != parentID {
			oldParent := existing.parent
			f.detach(existing)
			f.attach(existing, parentID)
			f.prune(oldParent)
		}
		return nil
	}

	n := &Node{id: rec.ID, payload: &rec}
	f.index[rec.ID] = n
	f.attach(n, parentID)
	return nil
}

// Remove detaches the node and its whole reply subtree and returns it as a
// standalone single-root forest. Placeholders left without children are pruned.
func (f *Forest) Remove(id string) (*Forest, error) {
	n, ok := f.index[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	parent := n.parent
	f.detach(n)

	removed := &Forest{roots: []string{id}, index: make(map[string]*Node)}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := f.index[cur]
		delete(f.index, cur)
		removed.index[cur] = node
		stack = append(stack, node.children...)
	}

	f.prune(parent)
	return removed, nil
}

// Edit replaces the content of a resolved node and flags it as edited.
// Children are untouched.
func (f *Forest) Edit(id, content string) error {
	n, ok := f.index[id]
	if !ok || !n.Resolved() {
		return &NotFoundError{ID: id}
	}
	n.payload.Content = content
	n.payload.IsEdited = true
	return nil
}

// DepthOf returns the 0-based nesting depth of a node.
func (f *Forest) DepthOf(id string) (int, error) {
	n, ok := f.index[id]
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	depth := 0
	for n.parent != "" {
		n = f.index[n.parent]
		depth++
	}
	return depth, nil
}

// Node looks up a node by id.
func (f *Forest) Node(id string) (*Node, bool) {
	n, ok := f.index[id]
	return n, ok
}

// Roots returns the top-level nodes in insertion order.
func (f *Forest) Roots() []*Node {
	return f.nodes(f.roots)
}

// Children returns the direct replies of id, nil if id is unknown.
func (f *Forest) Children(id string) []*Node {
	n, ok := f.index[id]
	if !ok {
		return nil
	}
	return f.nodes(n.children)
}

// Len is the number of nodes, placeholders included.
func (f *Forest) Len() int { return len(f.index) }

// Walk visits every node in pre-order. Returning false from fn skips the
// node's replies.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	for _, id := range f.roots {
		f.walk(f.index[id], 0, fn)
	}
}

func (f *Forest) walk(n *Node, depth int, fn func(n *Node, depth int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, id := range n.children {
		f.walk(f.index[id], depth+1, fn)
	}
}

// Records flattens the resolved nodes in pre-order. Building a forest from
// the result reproduces the same parent-child edges.
func (f *Forest) Records() []Record {
	records := make([]Record, 0, len(f.index))
	f.Walk(func(n *Node, _ int) bool {
		if rec, ok := n.Payload(); ok {
			records = append(records, rec)
		}
		return true
	})
	return records
}

func (f *Forest) nodes(ids []string) []*Node {
	res := make([]*Node, 0, len(ids))
	for _, id := range ids {
		res = append(res, f.index[id])
	}
	return res
}

// ensureChain makes sure the record's immediate parent exists, creating
// placeholders from the head of the chain down for any missing ancestor.
func (f *Forest) ensureChain(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	last := chain[len(chain)-1]
	if _, ok := f.index[last]; ok {
		return last
	}
	parent := ""
	for _, id := range chain {
		if _, ok := f.index[id]; !ok {
			ph := &Node{id: id}
			f.index[id] = ph
			f.attach(ph, parent)
		}
		parent = id
	}
	return last
}

// cycleThrough reports the loop that would form if n were placed beneath a
// chain containing one of its own descendants.
func (f *Forest) cycleThrough(n *Node, chain []string) []string {
	for _, id := range chain {
		cur, ok := f.index[id]
		if !ok {
			continue
		}
		path := []string{cur.id}
		for cur.parent != "" {
			if cur.parent == n.id {
				path = append(path, n.id)
				slices.Reverse(path)
				return path
			}
			cur = f.index[cur.parent]
			path = append(path, cur.id)
		}
	}
	return nil
}

func (f *Forest) attach(n *Node, parentID string) {
	n.parent = parentID
	if parentID == "" {
		f.roots = append(f.roots, n.id)
		return
	}
	p := f.index[parentID]
	p.children = append(p.children, n.id)
}

func (f *Forest) detach(n *Node) {
	if n.parent == "" {
		f.roots = remove(f.roots, n.id)
		return
	}
	if p, ok := f.index[n.parent]; ok {
		p.children = remove(p.children, n.id)
	}
	n.parent = ""
}

// prune drops placeholders that no longer hold anything, walking upwards.
func (f *Forest) prune(id string) {
	for id != "" {
		n, ok := f.index[id]
		if !ok || n.Resolved() || len(n.children) > 0 {
			return
		}
		next := n.parent
		f.detach(n)
		delete(f.index, id)
		id = next
	}
}

func remove(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

func validate(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	for _, id := range rec.AncestorChain {
		if id == "" {
			return fmt.Errorf("%w: comment %q has an empty ancestor id", ErrInvalidRecord, rec.ID)
		}
	}
	return nil
}

// chainCycle returns the looping segment of AncestorChain+ID, or nil.
func chainCycle(rec Record) []string {
	path := make([]string, 0, len(rec.AncestorChain)+1)
	path = append(path, rec.AncestorChain...)
	path = append(path, rec.ID)

	seen := make(map[string]int, len(path))
	for i, id := range path {
		if j, ok := seen[id]; ok {
			return slices.Clone(path[j:i])
		}
		seen[id] = i
	}
	return nil
}
