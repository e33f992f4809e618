package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAtLeast(t *testing.T) {
	assert.True(t, Superuser.HasAtLeast(Admin))
	assert.True(t, Admin.HasAtLeast(Admin))
	assert.True(t, Admin.HasAtLeast(User))
	assert.False(t, User.HasAtLeast(Admin))
	assert.False(t, Admin.HasAtLeast(Superuser))
}

func TestIsValid(t *testing.T) {
	assert.True(t, User.IsValid())
	assert.True(t, Admin.IsValid())
	assert.True(t, Superuser.IsValid())
	assert.False(t, Role("manager").IsValid())
}

func TestUnknownRoleDefaultsToUserLevel(t *testing.T) {
	assert.Equal(t, UserLevel, Role("manager").GetHierarchyLevel())
}
