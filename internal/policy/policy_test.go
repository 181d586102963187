package policy

import (
	"testing"

	"devsnippet/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanEditPost(t *testing.T) {
	post := &models.Post{ID: "p1", AuthorID: "author"}

	author := Identity{ID: "author", Role: models.RoleUser}
	other := Identity{ID: "other", Role: models.RoleUser}
	admin := Identity{ID: "root", Role: models.RoleAdmin}

	assert.True(t, CanEditPost(author, post))
	assert.True(t, CanEditPost(admin, post))
	assert.False(t, CanEditPost(other, post))
	assert.False(t, CanEditPost(Identity{}, post))
	assert.False(t, CanEditPost(author, nil))
	assert.True(t, CanDeletePost(admin, post))

	assert.NoError(t, RequirePostEditor(author, post))
	err := RequirePostEditor(other, post)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
}

func TestCanModerate(t *testing.T) {
	assert.True(t, CanModerate(Identity{ID: "a", Role: models.RoleAdmin}))
	assert.False(t, CanModerate(Identity{ID: "u", Role: models.RoleUser}))
	assert.False(t, CanModerate(Identity{Role: models.RoleAdmin}))
	assert.True(t, models.IsCode(RequireModerator(Identity{ID: "u"}), models.CodeForbidden))
}

func TestSelfProtection(t *testing.T) {
	admin := Identity{ID: "root", Role: models.RoleAdmin}

	err := CheckRoleChange(admin, "root", models.RoleUser)
	assert.True(t, models.IsCode(err, models.CodeBadRequest))
	assert.NoError(t, CheckRoleChange(admin, "root", models.RoleAdmin))
	assert.NoError(t, CheckRoleChange(admin, "someone", models.RoleUser))

	err = CheckUserDeletion(admin, "root")
	assert.True(t, models.IsCode(err, models.CodeBadRequest))
	assert.NoError(t, CheckUserDeletion(admin, "someone"))
}

func TestIdentityOf(t *testing.T) {
	u := &models.User{ID: "1", Username: "alice", Email: "a@x.com", Role: models.RoleAdmin}
	id := IdentityOf(u)
	assert.Equal(t, Identity{ID: "1", Username: "alice", Email: "a@x.com", Role: models.RoleAdmin}, id)
}
