package vault

import (
	"sort"
	"strings"

	"github.com/keepgoing-web/keepgoing/internal/models"
)

// TreeNode is one category in the derived tree together with the posts that
// reference it directly and its child categories.
type TreeNode struct {
	Category models.Category
	Posts    []models.Post
	Children []*TreeNode
}

// Tree is the full derived navigation structure: top-level category nodes
// plus the bucket of posts with no category.
type Tree struct {
	Roots         []*TreeNode
	Uncategorized []models.Post
}

// BuildTree derives a category tree from the flat category and post lists.
// Posts attach to the node matching their category id; posts whose category
// id resolves to no known category land in the uncategorized bucket, as do
// posts with no category at all. Categories whose parent id is unknown, or
// that sit on a parent cycle, are treated as roots so that no category ever
// disappears from the tree. Pure function of its inputs.
func BuildTree(categories []models.Category, posts []models.Post) *Tree {
	nodes := make(map[string]*TreeNode, len(categories))
	for _, cat := range categories {
		nodes[cat.ID] = &TreeNode{Category: cat}
	}

	tree := &Tree{}
	for _, p := range posts {
		if p.CategoryID != nil {
			if node, ok := nodes[*p.CategoryID]; ok {
				node.Posts = append(node.Posts, p)
				continue
			}
		}
		tree.Uncategorized = append(tree.Uncategorized, p)
	}

	for _, cat := range categories {
		node := nodes[cat.ID]
		parent := resolveParent(cat, nodes)
		if parent == nil {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(tree.Roots)
	return tree
}

// resolveParent returns the parent node for cat, or nil when cat should be
// a root: no parent, an unknown parent, or a parent chain that loops back
// to cat.
func resolveParent(cat models.Category, nodes map[string]*TreeNode) *TreeNode {
	if cat.ParentID == nil {
		return nil
	}
	parent, ok := nodes[*cat.ParentID]
	if !ok {
		return nil
	}
	// Walk up to detect a cycle through cat.
	seen := map[string]bool{cat.ID: true}
	cur := parent
	for {
		if seen[cur.Category.ID] {
			return nil
		}
		seen[cur.Category.ID] = true
		if cur.Category.ParentID == nil {
			break
		}
		next, ok := nodes[*cur.Category.ParentID]
		if !ok {
			break
		}
		cur = next
	}
	return parent
}

func sortNodes(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Category.Name) < strings.ToLower(nodes[j].Category.Name)
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
