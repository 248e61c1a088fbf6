package reaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/blogman/internal/model"
)

// mockReactionRepo はReactionRepositoryのモック。
// applyFnが未設定の場合はApplyで集合を更新する。
type mockReactionRepo struct {
	sets    map[string]model.Reactions
	applyFn func(target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error)
}

func (m *mockReactionRepo) Apply(ctx context.Context, target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error) {
	if m.applyFn != nil {
		return m.applyFn(target, targetID, userID, action)
	}
	if m.sets == nil {
		m.sets = map[string]model.Reactions{}
	}
	key := string(target) + "/" + targetID
	sets := m.sets[key]
	Apply(&sets, userID, action)
	m.sets[key] = sets
	return sets.Clone(), nil
}

func TestApply_LikeThenDislike(t *testing.T) {
	r := model.NewReactions()

	Apply(&r, "u1", model.ReactionLike)
	assert.True(t, r.Likers.Has("u1"))
	assert.False(t, r.Dislikers.Has("u1"))

	Apply(&r, "u1", model.ReactionDislike)
	assert.False(t, r.Likers.Has("u1"))
	assert.True(t, r.Dislikers.Has("u1"))
}

// 2回目のいいねでいいねが取り消されないこと
func TestApply_SecondLikeKeepsLike(t *testing.T) {
	r := model.NewReactions()

	Apply(&r, "u1", model.ReactionLike)
	Apply(&r, "u1", model.ReactionLike)

	assert.Equal(t, []string{"u1"}, r.Likers.Slice())
	assert.Empty(t, r.Dislikers)
}

func TestApply_SecondDislikeKeepsDislike(t *testing.T) {
	r := model.NewReactions()

	Apply(&r, "u1", model.ReactionDislike)
	Apply(&r, "u1", model.ReactionDislike)

	assert.Equal(t, []string{"u1"}, r.Dislikers.Slice())
	assert.Empty(t, r.Likers)
}

func TestApply_NilSetsAreInitialised(t *testing.T) {
	var r model.Reactions
	Apply(&r, "u1", model.ReactionDislike)
	assert.True(t, r.Dislikers.Has("u1"))
	assert.NotNil(t, r.Likers)
}

func TestApply_OtherUsersUntouched(t *testing.T) {
	r := model.Reactions{
		Likers:    model.NewUserSet("a"),
		Dislikers: model.NewUserSet("b"),
	}
	Apply(&r, "c", model.ReactionLike)

	assert.Equal(t, []string{"a", "c"}, r.Likers.Slice())
	assert.Equal(t, []string{"b"}, r.Dislikers.Slice())
}

// 任意のリアクション列の後でもいいねとよくないねは互いに素であること
func TestApply_DisjointAfterRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4"}
	actions := []model.ReactionAction{model.ReactionLike, model.ReactionDislike}

	r := model.NewReactions()
	last := map[string]model.ReactionAction{}
	for i := 0; i < 500; i++ {
		u := users[rng.Intn(len(users))]
		a := actions[rng.Intn(len(actions))]
		Apply(&r, u, a)
		last[u] = a

		for id := range r.Likers {
			require.False(t, r.Dislikers.Has(id), "step %d: %s in both sets", i, id)
		}
	}

	for u, a := range last {
		assert.Equal(t, a, r.Of(u), "user %s", u)
	}
}

func TestLedger_Toggle_UpdatesEntity(t *testing.T) {
	ledger := NewLedger(&mockReactionRepo{})
	post := &model.Post{ID: "p1", Reactions: model.NewReactions()}

	require.NoError(t, ledger.Toggle(context.Background(), post, "u1", model.ReactionLike))
	assert.True(t, post.Reactions.Likers.Has("u1"))

	require.NoError(t, ledger.Toggle(context.Background(), post, "u1", model.ReactionDislike))
	assert.False(t, post.Reactions.Likers.Has("u1"))
	assert.True(t, post.Reactions.Dislikers.Has("u1"))
}

func TestLedger_Toggle_CommentUsesCommentTarget(t *testing.T) {
	var gotTarget model.ReactionTarget
	var gotID string
	repo := &mockReactionRepo{
		applyFn: func(target model.ReactionTarget, targetID, userID string, action model.ReactionAction) (model.Reactions, error) {
			gotTarget, gotID = target, targetID
			return model.Reactions{Likers: model.NewUserSet(userID), Dislikers: model.UserSet{}}, nil
		},
	}
	comment := &model.Comment{ID: "c9"}

	require.NoError(t, NewLedger(repo).Toggle(context.Background(), comment, "u1", model.ReactionLike))
	assert.Equal(t, model.ReactionTargetComment, gotTarget)
	assert.Equal(t, "c9", gotID)
	assert.True(t, comment.Reactions.Likers.Has("u1"))
}

func TestLedger_Toggle_InvalidAction(t *testing.T) {
	called := false
	repo := &mockReactionRepo{
		applyFn: func(model.ReactionTarget, string, string, model.ReactionAction) (model.Reactions, error) {
			called = true
			return model.Reactions{}, nil
		},
	}

	err := NewLedger(repo).Toggle(context.Background(), &model.Post{ID: "p1"}, "u1", "love")
	assert.True(t, model.IsKind(err, model.KindValidation), "got %v", err)
	assert.False(t, called, "repository must not be called for an invalid action")
}

func TestLedger_Toggle_StorageErrorLeavesEntityUnchanged(t *testing.T) {
	repo := &mockReactionRepo{
		applyFn: func(model.ReactionTarget, string, string, model.ReactionAction) (model.Reactions, error) {
			return model.Reactions{}, model.NewStorageError("down", errors.New("timeout"))
		},
	}
	post := &model.Post{ID: "p1", Reactions: model.Reactions{Likers: model.NewUserSet("x"), Dislikers: model.UserSet{}}}

	err := NewLedger(repo).Toggle(context.Background(), post, "u1", model.ReactionLike)
	assert.True(t, model.IsKind(err, model.KindStorage))
	assert.Equal(t, []string{"x"}, post.Reactions.Likers.Slice())
}

func ExampleApply() {
	r := model.NewReactions()
	Apply(&r, "alice", model.ReactionLike)
	Apply(&r, "alice", model.ReactionLike)
	Apply(&r, "bob", model.ReactionDislike)
	fmt.Println(r.Likers.Slice(), r.Dislikers.Slice())
	// Output: [alice] [bob]
}
