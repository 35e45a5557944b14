package thread

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, chain ...string) Record {
	return Record{ID: id, Content: "content of " + id, AncestorChain: chain}
}

// edges maps every parent id ("" for the forest root) to its ordered children.
func edges(f *Forest) map[string][]string {
	res := map[string][]string{}
	for _, r := range f.Roots() {
		res[""] = append(res[""], r.ID())
	}
	f.Walk(func(n *Node, _ int) bool {
		if n.NumChildren() > 0 {
			res[n.ID()] = n.ChildIDs()
		}
		return true
	})
	return res
}

func TestBuild_NestedChain(t *testing.T) {
	f, diags := Build([]Record{rec("1"), rec("2", "1"), rec("3", "1", "2")})
	require.Empty(t, diags)

	want := map[string][]string{"": {"1"}, "1": {"2"}, "2": {"3"}}
	if diff := cmp.Diff(want, edges(f)); diff != "" {
		t.Fatalf("unexpected shape (-want +got):\n%s", diff)
	}

	depth, err := f.DepthOf("3")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
	assert.Equal(t, 3, f.Len())
}

func TestBuild_SelfReference(t *testing.T) {
	f, diags := Build([]Record{rec("1", "1"), rec("2")})
	require.Len(t, diags, 1)

	var cycle *CycleError
	require.True(t, errors.As(diags[0], &cycle))
	assert.Equal(t, []string{"1"}, cycle.IDs)
	assert.ErrorIs(t, diags[0], ErrCycle)

	_, ok := f.Node("1")
	assert.False(t, ok)
	assert.Equal(t, map[string][]string{"": {"2"}}, edges(f))
}

func TestBuild_ChainCycles(t *testing.T) {
	testCases := []struct {
		name    string
		records []Record
		want    []string
	}{
		{
			name:    "repeated id inside chain",
			records: []Record{rec("c", "a", "b", "a")},
			want:    []string{"a", "b"},
		},
		{
			name:    "own id deeper in chain",
			records: []Record{rec("a", "a", "b")},
			want:    []string{"a", "b"},
		},
		{
			name:    "own id at chain head",
			records: []Record{rec("a", "x"), rec("b", "a", "y", "b")},
			want:    []string{"b"},
		},
		{
			name:    "two records naming each other as parent",
			records: []Record{rec("a", "b"), rec("b", "a")},
			want:    []string{"b", "a"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := Build(tc.records)
			require.Len(t, diags, 1)
			var cycle *CycleError
			require.True(t, errors.As(diags[0], &cycle))
			assert.Equal(t, tc.want, cycle.IDs)
		})
	}
}

func TestBuild_MutualParentsKeepsFirst(t *testing.T) {
	f, diags := Build([]Record{rec("a", "b"), rec("b", "a")})
	require.Len(t, diags, 1)

	b, ok := f.Node("b")
	require.True(t, ok)
	assert.False(t, b.Resolved())
	assert.Equal(t, map[string][]string{"": {"b"}, "b": {"a"}}, edges(f))
}

func TestBuild_DuplicateIDFirstWins(t *testing.T) {
	first := rec("1")
	second := rec("1")
	second.Content = "overwritten"

	f, diags := Build([]Record{first, rec("2", "1"), second})
	require.Len(t, diags, 1)
	var dup *DuplicateIDError
	require.True(t, errors.As(diags[0], &dup))
	assert.Equal(t, "1", dup.ID)

	n, ok := f.Node("1")
	require.True(t, ok)
	payload, ok := n.Payload()
	require.True(t, ok)
	assert.Equal(t, "content of 1", payload.Content)
	assert.Equal(t, []string{"2"}, n.ChildIDs())
}

func TestBuild_InvalidRecords(t *testing.T) {
	f, diags := Build([]Record{rec(""), rec("2", "1", ""), rec("3")})
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.ErrorIs(t, d, ErrInvalidRecord)
	}
	assert.Equal(t, 1, f.Len())
}

func TestBuild_PreservesSiblingInputOrder(t *testing.T) {
	f, diags := Build([]Record{rec("b"), rec("r"), rec("z", "r"), rec("a"), rec("m", "r"), rec("c", "r")})
	require.Empty(t, diags)
	assert.Equal(t, map[string][]string{"": {"b", "r", "a"}, "r": {"z", "m", "c"}}, edges(f))
}

func TestBuild_PlaceholderForMissingParent(t *testing.T) {
	f, diags := Build([]Record{rec("c2", "c1")})
	require.Empty(t, diags)

	c1, ok := f.Node("c1")
	require.True(t, ok)
	assert.False(t, c1.Resolved())
	_, ok = c1.Payload()
	assert.False(t, ok)
	assert.Equal(t, []string{"c2"}, c1.ChildIDs())

	c2, ok := f.Node("c2")
	require.True(t, ok)
	assert.True(t, c2.Resolved())

	require.NoError(t, f.Insert(rec("c1")))

	resolved, ok := f.Node("c1")
	require.True(t, ok)
	assert.Same(t, c1, resolved)
	assert.True(t, resolved.Resolved())
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, map[string][]string{"": {"c1"}, "c1": {"c2"}}, edges(f))
}

func TestBuild_PlaceholdersAlongMissingChain(t *testing.T) {
	f, diags := Build([]Record{rec("d", "a", "b", "c")})
	require.Empty(t, diags)
	assert.Equal(t, map[string][]string{"": {"a"}, "a": {"b"}, "b": {"c"}, "c": {"d"}}, edges(f))

	for _, id := range []string{"a", "b", "c"} {
		n, ok := f.Node(id)
		require.True(t, ok)
		assert.False(t, n.Resolved(), id)
	}

	depth, err := f.DepthOf("d")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestBuild_ChildUnderPlaceholderStaysUnresolved(t *testing.T) {
	f, diags := Build([]Record{rec("b", "a"), rec("c", "a")})
	require.Empty(t, diags)

	a, ok := f.Node("a")
	require.True(t, ok)
	assert.False(t, a.Resolved())
	assert.Equal(t, []string{"b", "c"}, a.ChildIDs())
}

func TestInsert_ResolvingPlaceholderMovesIt(t *testing.T) {
	// "x" was materialized at the top level by "y", but the real record says
	// it replies to "root".
	f, diags := Build([]Record{rec("root"), rec("y", "x")})
	require.Empty(t, diags)

	x, _ := f.Node("x")
	require.NoError(t, f.Insert(rec("x", "root")))

	moved, ok := f.Node("x")
	require.True(t, ok)
	assert.Same(t, x, moved)
	assert.Equal(t, map[string][]string{"": {"root"}, "root": {"x"}, "x": {"y"}}, edges(f))

	depth, err := f.DepthOf("y")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestInsert_MovePrunesEmptiedPlaceholders(t *testing.T) {
	f, diags := Build([]Record{rec("root"), rec("y", "p", "x")})
	require.Empty(t, diags)
	assert.Equal(t, map[string][]string{"": {"root", "p"}, "p": {"x"}, "x": {"y"}}, edges(f))

	require.NoError(t, f.Insert(rec("x", "root")))
	_, ok := f.Node("p")
	assert.False(t, ok)
	assert.Equal(t, map[string][]string{"": {"root"}, "root": {"x"}, "x": {"y"}}, edges(f))
}

func TestRemove(t *testing.T) {
	f, diags := Build([]Record{rec("1"), rec("2", "1"), rec("3", "1", "2"), rec("4", "1"), rec("5")})
	require.Empty(t, diags)

	removed, err := f.Remove("2")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"": {"1", "5"}, "1": {"4"}}, edges(f))
	assert.Equal(t, map[string][]string{"": {"2"}, "2": {"3"}}, edges(removed))
	assert.Equal(t, 2, removed.Len())

	for _, id := range []string{"2", "3"} {
		_, err := f.DepthOf(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	_, err = f.Remove("2")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "2", nf.ID)
}

func TestRemove_PrunesOrphanedPlaceholder(t *testing.T) {
	f, diags := Build([]Record{rec("c", "a", "b"), rec("z")})
	require.Empty(t, diags)

	_, err := f.Remove("c")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"": {"z"}}, edges(f))
	assert.Equal(t, 1, f.Len())
}

func TestRemove_KeepsPlaceholderWithOtherReplies(t *testing.T) {
	f, diags := Build([]Record{rec("b", "a"), rec("c", "a")})
	require.Empty(t, diags)

	_, err := f.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"": {"a"}, "a": {"c"}}, edges(f))
}

func TestRemoveThenInsertRestoresShape(t *testing.T) {
	f, diags := Build([]Record{rec("1"), rec("2", "1"), rec("3", "1"), rec("4", "1", "2"), rec("5", "1")})
	require.Empty(t, diags)

	n, ok := f.Node("3")
	require.True(t, ok)
	payload, ok := n.Payload()
	require.True(t, ok)

	_, err := f.Remove("3")
	require.NoError(t, err)
	require.NoError(t, f.Insert(payload))

	assert.Equal(t, map[string][]string{"": {"1"}, "1": {"2", "5", "3"}, "2": {"4"}}, edges(f))
}

func TestEdit(t *testing.T) {
	f, diags := Build([]Record{rec("1"), rec("2", "1"), rec("3", "1", "2"), rec("x", "missing")})
	require.Empty(t, diags)

	require.NoError(t, f.Edit("2", "new text"))

	n, _ := f.Node("2")
	payload, _ := n.Payload()
	assert.Equal(t, "new text", payload.Content)
	assert.True(t, payload.IsEdited)
	assert.Equal(t, []string{"3"}, n.ChildIDs())

	three, _ := f.Node("3")
	untouched, _ := three.Payload()
	assert.Equal(t, "content of 3", untouched.Content)
	assert.False(t, untouched.IsEdited)

	assert.ErrorIs(t, f.Edit("nope", "x"), ErrNotFound)
	assert.ErrorIs(t, f.Edit("missing", "x"), ErrNotFound)
}

func TestDepthOfIsStable(t *testing.T) {
	f, _ := Build([]Record{rec("1"), rec("2", "1")})
	first, err := f.DepthOf("2")
	require.NoError(t, err)
	second, err := f.DepthOf("2")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPayloadIsACopy(t *testing.T) {
	input := rec("2", "1")
	f, _ := Build([]Record{rec("1"), input})
	input.AncestorChain[0] = "mutated"

	n, _ := f.Node("2")
	payload, _ := n.Payload()
	assert.Equal(t, []string{"1"}, payload.AncestorChain)

	payload.AncestorChain[0] = "mutated"
	again, _ := n.Payload()
	assert.Equal(t, []string{"1"}, again.AncestorChain)
}

func TestWalkSkipsReplies(t *testing.T) {
	f, _ := Build([]Record{rec("1"), rec("2", "1"), rec("3", "1", "2"), rec("4")})

	var visited []string
	f.Walk(func(n *Node, depth int) bool {
		visited = append(visited, fmt.Sprintf("%s@%d", n.ID(), depth))
		return depth < 1
	})
	assert.Equal(t, []string{"1@0", "2@1", "4@0"}, visited)
}

func TestRecordsRoundTrip(t *testing.T) {
	f, diags := Build([]Record{rec("5", "1", "2"), rec("1"), rec("2", "1"), rec("3"), rec("4", "3")})
	require.Empty(t, diags)

	rebuilt, diags := Build(f.Records())
	require.Empty(t, diags)
	if diff := cmp.Diff(edges(f), edges(rebuilt)); diff != "" {
		t.Fatalf("rebuilt forest differs (-orig +rebuilt):\n%s", diff)
	}
}

// Every node's ancestor chain must equal the path of ids found by walking
// parent links upward.
func TestBuild_ShapeMatchesAncestorChains(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	var records []Record
	chains := map[string][]string{}
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("c%d", i)
		var chain []string
		if i > 0 && r.Intn(4) != 0 {
			parent := fmt.Sprintf("c%d", r.Intn(i))
			chain = append(append([]string{}, chains[parent]...), parent)
		}
		chains[id] = chain
		records = append(records, rec(id, chain...))
	}
	r.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

	f, diags := Build(records)
	require.Empty(t, diags)
	require.Equal(t, len(records), f.Len())

	f.Walk(func(n *Node, depth int) bool {
		require.True(t, n.Resolved(), n.ID())
		var path []string
		for cur := n; cur.ParentID() != ""; {
			cur, _ = f.Node(cur.ParentID())
			path = append([]string{cur.ID()}, path...)
		}
		require.Len(t, path, depth)
		if len(path) == 0 {
			path = nil
		}
		assert.Equal(t, chains[n.ID()], path, n.ID())
		return true
	})
}
