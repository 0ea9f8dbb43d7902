package account

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/permission"
)

// Directory combines users and groups to build principals.
type Directory struct {
	Users  *Users
	Groups *Groups
}

// LoadPrincipal rebuilds the principal of id from storage. Unknown ids and
// id 0 yield the guest principal.
func (d Directory) LoadPrincipal(ctx context.Context, id int64) (permission.Principal, error) {
	if id <= 0 {
		return permission.Guest(), nil
	}

	usr, err := d.Users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return permission.Guest(), nil
		}
		return permission.Guest(), err
	}

	groups, err := d.Groups.UserGroups(ctx, id)
	if err != nil {
		return permission.Guest(), err
	}
	perms, err := d.Groups.PermissionsForUser(ctx, id)
	if err != nil {
		return permission.Guest(), err
	}

	p := permission.Principal{
		ID:          usr.ID,
		Username:    usr.Username,
		DisplayName: usr.DisplayName,
		State:       int(usr.State),
		Permissions: perms,
		Admin:       perms.Has(permission.AdminPermission),
	}
	if p.DisplayName == "" {
		p.DisplayName = usr.Username
	}
	for _, g := range groups {
		p.GroupIDs = append(p.GroupIDs, g.ID)
		p.Groups = append(p.Groups, g.Title)
	}
	return p, nil
}
