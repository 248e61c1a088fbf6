package memory

import (
	"context"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/reaction"
	"github.com/hitoshi/blogman/internal/repository"
)

// ReactionRepo はインメモリのリアクションリポジトリ。
type ReactionRepo struct {
	s *Store
}

// Apply はストアのロック内でリアクションを適用し、更新後の集合のコピーを返す。
func (r *ReactionRepo) Apply(ctx context.Context, target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := reactionKey{target: target, id: targetID}
	sets := r.s.reactions[key]
	reaction.Apply(&sets, userID, action)
	r.s.reactions[key] = sets
	return sets.Clone(), nil
}

// compile-time interface check
var _ repository.ReactionRepository = (*ReactionRepo)(nil)
