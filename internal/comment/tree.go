package comment

import "github.com/hitoshi/blogman/internal/model"

// Node は返信ツリーの1ノード。
type Node struct {
	Comment *model.Comment
	Replies []*Node
}

// BuildTree は作成順に並んだコメント一覧から返信ツリーを組み立てる。
// 兄弟の順序は入力の順序を保つ。親が一覧に含まれないコメントはルートとして扱う。
func BuildTree(comments []*model.Comment) []*Node {
	nodes := make(map[string]*Node, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &Node{Comment: c, Replies: []*Node{}}
	}

	roots := []*Node{}
	for _, c := range comments {
		node := nodes[c.ID]
		parent, ok := nodes[c.ParentID]
		if c.IsRoot() || !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}
	return roots
}
