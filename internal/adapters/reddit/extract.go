package reddit

import (
	"encoding/json"
	"time"

	"stock-pulse/internal/domain"
)

type frame struct {
	node     commentNode
	parentID string
	depth    int
}

// extractComments разворачивает дерево ответов в плоский список, сохраняя исходный
// порядок детей. Обход итеративный: глубина дерева Reddit ничем не ограничена.
func extractComments(listing *listingEnvelope, postExternalID string) []domain.Comment {
	var out []domain.Comment
	stack := make([]frame, 0, 64)
	pushChildren(&stack, listing, postExternalID, 0)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, domain.Comment{
			ExternalID:  f.node.Name,
			ParentID:    f.parentID,
			Depth:       f.depth,
			Author:      f.node.Author,
			Body:        f.node.Body,
			Score:       f.node.Score,
			CommentedAt: time.Unix(int64(f.node.CreatedUTC), 0).UTC(),
		})
		pushChildren(&stack, f.node.Replies.Listing, f.node.Name, f.depth+1)
	}
	return out
}

// pushChildren кладёт детей в стек в обратном порядке, чтобы обход шёл слева направо.
func pushChildren(stack *[]frame, listing *listingEnvelope, parentID string, depth int) {
	if listing == nil {
		return
	}
	children := listing.Data.Children
	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		if child.Kind != kindComment {
			continue
		}
		var node commentNode
		if err := json.Unmarshal(child.Data, &node); err != nil || node.Name == "" {
			continue
		}
		*stack = append(*stack, frame{node: node, parentID: parentID, depth: depth})
	}
}
