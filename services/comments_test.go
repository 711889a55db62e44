package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

func commentsCount(t *testing.T, h *harness, subject models.Subject) int64 {
	t.Helper()
	var r models.Recipe
	require.NoError(t, h.db.First(&r, subject.ID).Error)
	return r.CommentsCount
}

func TestCommentCounterFollowsModeration(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	user := seedUser(t, h.db, models.RoleUser)
	admin := seedUser(t, h.db, models.RoleAdmin)

	c, err := h.comments.Create(ctx, user, NewComment{Subject: subject, Content: "Délicieux"})
	require.NoError(t, err)
	assert.False(t, c.IsApproved)
	assert.Zero(t, commentsCount(t, h, subject))

	_, err = h.comments.SetApproval(ctx, c.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, commentsCount(t, h, subject))

	// Approving twice changes nothing.
	_, err = h.comments.SetApproval(ctx, c.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, commentsCount(t, h, subject))

	byAdmin, err := h.comments.Create(ctx, admin, NewComment{Subject: subject, Content: "Merci !"})
	require.NoError(t, err)
	assert.True(t, byAdmin.IsApproved)
	assert.EqualValues(t, 2, commentsCount(t, h, subject))

	_, err = h.comments.SetApproval(ctx, c.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, commentsCount(t, h, subject))

	require.NoError(t, h.comments.Delete(ctx, admin, byAdmin.ID))
	assert.Zero(t, commentsCount(t, h, subject))

	_, err = h.comments.Restore(ctx, byAdmin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, commentsCount(t, h, subject))

	_, err = h.comments.Restore(ctx, byAdmin.ID)
	assert.ErrorIs(t, err, utils.ErrModelNotFound, "not deleted")
}

func TestProfessionalCommentsSkipModeration(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	subject := seedRecipe(t, h.db, true)
	pro := seedUser(t, h.db, models.RoleProfessional)

	c, err := h.comments.Create(context.Background(), pro, NewComment{Subject: subject, Content: "Astuce de chef"})
	require.NoError(t, err)
	assert.True(t, c.IsApproved)
}

func TestReplyToReplyIsFlattened(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	admin := seedUser(t, h.db, models.RoleAdmin)

	root, err := h.comments.Create(ctx, admin, NewComment{Subject: subject, Content: "root"})
	require.NoError(t, err)
	reply, err := h.comments.Create(ctx, admin, NewComment{Subject: subject, Content: "reply", ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	nested, err := h.comments.Create(ctx, admin, NewComment{Subject: subject, Content: "nested", ParentID: &reply.ID})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentID)
	assert.Equal(t, root.ID, *nested.ParentID)

	items, total, err := h.comments.List(ctx, subject, 1, 15)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Replies, 2)
	assert.EqualValues(t, 3, commentsCount(t, h, subject))
}

func TestReplyMustTargetSameSubject(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	first := seedRecipe(t, h.db, true)
	second := seedRecipe(t, h.db, true)
	admin := seedUser(t, h.db, models.RoleAdmin)

	root, err := h.comments.Create(ctx, admin, NewComment{Subject: first, Content: "root"})
	require.NoError(t, err)

	_, err = h.comments.Create(ctx, admin, NewComment{Subject: second, Content: "elsewhere", ParentID: &root.ID})
	assert.ErrorIs(t, err, utils.ErrValidation)

	missing := uint(999)
	_, err = h.comments.Create(ctx, admin, NewComment{Subject: first, Content: "orphan", ParentID: &missing})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestCommentContentValidation(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	user := seedUser(t, h.db, models.RoleUser)

	_, err := h.comments.Create(ctx, user, NewComment{Subject: subject, Content: "   "})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = h.comments.Create(ctx, user, NewComment{Subject: subject, Content: strings.Repeat("a", 1001)})
	assert.ErrorIs(t, err, utils.ErrValidation)

	c, err := h.comments.Create(ctx, user, NewComment{Subject: subject, Content: `<script>x</script>Bon`})
	require.NoError(t, err)
	assert.Equal(t, "Bon", c.Content)

	_, err = h.comments.Create(ctx, user, NewComment{Subject: models.Subject{Kind: models.KindPage, ID: 1}, Content: "x"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestOnlyAuthorOrAdminEditsComment(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	author := seedUser(t, h.db, models.RoleUser)
	other := seedUser(t, h.db, models.RoleUser)
	admin := seedUser(t, h.db, models.RoleAdmin)

	c, err := h.comments.Create(ctx, author, NewComment{Subject: subject, Content: "first"})
	require.NoError(t, err)

	_, err = h.comments.Update(ctx, other, c.ID, "hijack")
	assert.ErrorIs(t, err, utils.ErrAccessDenied)
	assert.ErrorIs(t, h.comments.Delete(ctx, other, c.ID), utils.ErrAccessDenied)

	updated, err := h.comments.Update(ctx, author, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	require.NoError(t, h.comments.Delete(ctx, admin, c.ID))
	_, err = h.comments.Update(ctx, author, c.ID, "gone")
	assert.ErrorIs(t, err, utils.ErrModelNotFound)
}

func TestPendingListsUnapproved(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	user := seedUser(t, h.db, models.RoleUser)

	_, err := h.comments.Create(ctx, user, NewComment{Subject: subject, Content: "waiting"})
	require.NoError(t, err)

	items, total, err := h.comments.Pending(ctx, 1, 15)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, user.ID, items[0].User.ID)

	visible, _, err := h.comments.List(ctx, subject, 1, 15)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestConfiguredAdminEmailModeratesComments(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)
	author := seedUser(t, h.db, models.RoleUser)
	chef := models.User{Name: "Chef", Email: "chef@dinor.test", Role: models.RoleUser}
	require.NoError(t, h.db.Create(&chef).Error)

	c, err := h.comments.Create(ctx, author, NewComment{Subject: subject, Content: "first"})
	require.NoError(t, err)

	updated, err := h.comments.Update(ctx, chef, c.ID, "tidied")
	require.NoError(t, err)
	assert.Equal(t, "tidied", updated.Content)

	own, err := h.comments.Create(ctx, chef, NewComment{Subject: subject, Content: "from the kitchen"})
	require.NoError(t, err)
	assert.True(t, own.IsApproved)

	require.NoError(t, h.comments.Delete(ctx, chef, c.ID))
}

func TestCommentsOnDraftsAreAdminOnly(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	draft := seedRecipe(t, h.db, false)
	user := seedUser(t, h.db, models.RoleUser)
	admin := seedUser(t, h.db, models.RoleAdmin)

	_, err := h.comments.Create(ctx, user, NewComment{Subject: draft, Content: "early"})
	assert.ErrorIs(t, err, utils.ErrModelNotFound)

	_, err = h.comments.Create(ctx, admin, NewComment{Subject: draft, Content: "review note"})
	assert.NoError(t, err)
}
