package permission

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedToEmptyRequirement(t *testing.T) {
	member := Principal{ID: 4, Permissions: New("blog.write")}

	require.True(t, member.AllowedTo())
	require.False(t, Guest().AllowedTo())
}

func TestGuestRefusedEvenForEmptyRequirement(t *testing.T) {
	guest := Guest()
	guest.Permissions.Add("x")

	require.False(t, guest.AllowedTo("x"))
	require.False(t, guest.AllowedTo())
}

func TestGroupMembership(t *testing.T) {
	p := Principal{ID: 3, GroupIDs: []int64{7, 9}, Groups: []string{"authors", "editors"}}

	require.True(t, p.InGroup("editors"))
	require.True(t, p.InGroupID(7))
	require.False(t, p.InGroupID(8))
	require.False(t, Guest().InGroupID(0))
}

func TestAdminAllowedEverything(t *testing.T) {
	admin := Principal{ID: 1, Admin: true, Permissions: New(AdminPermission)}

	require.True(t, admin.AllowedTo("anything.at_all"))
	require.True(t, admin.AllowedTo())
}

func TestAllowedToIntersection(t *testing.T) {
	p := Principal{ID: 2, Permissions: New("blog.read", "blog.write")}

	require.True(t, p.AllowedTo("blog.delete", "blog.write"))
	require.False(t, p.AllowedTo("blog.delete", "forum.post"))
}

func TestSetNamesSorted(t *testing.T) {
	s := New("b.x", "a.y", "", "b.x")

	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"a.y", "b.x"}, s.Names())

	var zero Set
	require.False(t, zero.Has("a.y"))
	require.Zero(t, zero.Len())
}

func TestInGroup(t *testing.T) {
	p := Principal{ID: 3, Groups: []string{"editors"}}

	require.True(t, p.InGroup("editors"))
	require.False(t, p.InGroup("admins"))
}

func TestRegistryRegisterAndFreeze(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Known(AdminPermission))

	name, err := r.Register("MyApp", "edit_posts")
	require.NoError(t, err)
	require.Equal(t, "my_app.edit_posts", name)
	require.True(t, r.Known(name))

	_, err = r.Register("MyApp", "edit_posts")
	require.Error(t, err)

	_, err = r.Register("", "x")
	require.Error(t, err)

	_, err = r.Register("app", "a.b")
	require.Error(t, err)

	r.Freeze()
	_, err = r.Register("MyApp", "other")
	require.True(t, errors.Is(err, ErrFrozen))
	require.Equal(t, 2, r.Count())
	require.Equal(t, []string{AdminPermission, "my_app.edit_posts"}, r.Names())
}

func TestRegistryCheck(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("blog", "write")
	require.NoError(t, err)

	require.NoError(t, r.Check("blog.write", AdminPermission))
	require.ErrorIs(t, r.Check("blog.write", "blog.nuke"), ErrUnknown)
}

func TestUncamelize(t *testing.T) {
	for in, want := range map[string]string{
		"MyApp":      "my_app",
		"core":       "core",
		"HTTPServer": "http_server",
		"Core":       "core",
		"my_App":     "my_app",
		"User2Group": "user2_group",
	} {
		require.Equal(t, want, Uncamelize(in), in)
	}
}

func TestSplit(t *testing.T) {
	storage, perm, ok := Split("my_app.edit")
	require.True(t, ok)
	require.Equal(t, "my_app", storage)
	require.Equal(t, "edit", perm)

	_, _, ok = Split("noseparator")
	require.False(t, ok)
	_, _, ok = Split(".edit")
	require.False(t, ok)
}
