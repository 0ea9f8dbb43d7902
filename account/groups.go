package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/permission"
)

// ErrInvalidGroup is matched for groups without storage or title.
var ErrInvalidGroup = errors.New("invalid group")

// Group is one groups row. Storage names the application owning the group.
type Group struct {
	ID          int64  `db:"id"`
	Storage     string `db:"storage"`
	Title       string `db:"title"`
	DisplayName string `db:"display_name"`
	Description string `db:"description"`
}

// Groups reads and writes groups, their permissions and memberships.
type Groups struct {
	db       *sqlx.DB
	registry *permission.Registry
}

// NewGroups builds a repository. With a non-nil registry, SetPermissions
// rejects names that were never registered.
func NewGroups(conn *sqlx.DB, registry *permission.Registry) *Groups {
	return &Groups{db: conn, registry: registry}
}

const groupColumns = `id, storage, title, display_name, description`

// Create inserts g and returns its id.
func (g *Groups) Create(ctx context.Context, in Group) (int64, error) {
	in.Storage = permission.Uncamelize(strings.TrimSpace(in.Storage))
	in.Title = strings.TrimSpace(in.Title)
	if in.Storage == "" || in.Title == "" {
		return 0, errs.Invalid("group", "storage and title are required", ErrInvalidGroup)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Title
	}

	q := g.db.Rebind(`INSERT INTO "groups" (storage, title, display_name, description)
		VALUES (?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := g.db.QueryRowxContext(ctx, q, in.Storage, in.Title, in.DisplayName, in.Description).Scan(&id); err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: group %s.%s", ErrDuplicate, in.Storage, in.Title)
		}
		return 0, errs.Storage("insert group", err)
	}
	return id, nil
}

// ByID loads one group.
func (g *Groups) ByID(ctx context.Context, id int64) (*Group, error) {
	var out Group
	q := g.db.Rebind(`SELECT ` + groupColumns + ` FROM "groups" WHERE id = ?`)
	if err := g.db.GetContext(ctx, &out, q, id); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, errs.Storage("load group", err)
	}
	return &out, nil
}

// List returns every group ordered by storage and title.
func (g *Groups) List(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := g.db.SelectContext(ctx, &out, `SELECT `+groupColumns+` FROM "groups" ORDER BY storage, title`); err != nil {
		return nil, errs.Storage("list groups", err)
	}
	return out, nil
}

// Delete removes the group with its permissions and memberships.
func (g *Groups) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, g.db, "delete group", func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM group_permissions WHERE group_id = ?`,
			`DELETE FROM user_groups WHERE group_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
				return errs.Storage("delete group", err)
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM "groups" WHERE id = ?`), id)
		if err != nil {
			return errs.Storage("delete group", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetPermissions replaces the permissions of groupID with names in one
// transaction. Names use the "storage.permission" form.
func (g *Groups) SetPermissions(ctx context.Context, groupID int64, names []string) error {
	type pair struct{ storage, perm string }
	pairs := make([]pair, 0, len(names))
	seen := permission.New()
	for _, name := range names {
		storage, perm, ok := permission.Split(name)
		if !ok {
			return errs.Invalid("permission", fmt.Sprintf("%q is not storage.permission", name), permission.ErrUnknown)
		}
		if g.registry != nil {
			if err := g.registry.Check(name); err != nil {
				return errs.Invalid("permission", err.Error(), permission.ErrUnknown)
			}
		}
		if seen.Has(name) {
			continue
		}
		seen.Add(name)
		pairs = append(pairs, pair{storage, perm})
	}

	return db.WithTx(ctx, g.db, "set group permissions", func(tx *sqlx.Tx) error {
		if err := groupExists(ctx, tx, groupID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM group_permissions WHERE group_id = ?`), groupID); err != nil {
			return errs.Storage("clear group permissions", err)
		}
		ins := tx.Rebind(`INSERT INTO group_permissions (group_id, storage, permission) VALUES (?, ?, ?)`)
		for _, p := range pairs {
			if _, err := tx.ExecContext(ctx, ins, groupID, p.storage, p.perm); err != nil {
				return errs.Storage("insert group permission", err)
			}
		}
		return nil
	})
}

// Permissions returns the full permission names of groupID.
func (g *Groups) Permissions(ctx context.Context, groupID int64) (permission.Set, error) {
	return g.permissions(ctx, `SELECT storage, permission FROM group_permissions WHERE group_id = ?`, groupID)
}

// SetUserGroups replaces the memberships of userID in one transaction.
func (g *Groups) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	if userID <= 0 {
		return ErrGuest
	}
	return db.WithTx(ctx, g.db, "set user groups", func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID); err != nil {
			return errs.Storage("check user", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_groups WHERE user_id = ?`), userID); err != nil {
			return errs.Storage("clear user groups", err)
		}
		ins := tx.Rebind(`INSERT INTO user_groups (user_id, group_id) VALUES (?, ?)`)
		done := map[int64]bool{}
		for _, id := range groupIDs {
			if done[id] {
				continue
			}
			done[id] = true
			if err := groupExists(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, ins, userID, id); err != nil {
				return errs.Storage("insert user group", err)
			}
		}
		return nil
	})
}

// UserGroups returns the groups userID belongs to.
func (g *Groups) UserGroups(ctx context.Context, userID int64) ([]Group, error) {
	q := g.db.Rebind(`SELECT g.id, g.storage, g.title, g.display_name, g.description
		FROM "groups" g JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = ? ORDER BY g.storage, g.title`)
	var out []Group
	if err := g.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, errs.Storage("list user groups", err)
	}
	return out, nil
}

// PermissionsForUser returns the union of the permissions of every group
// userID belongs to.
func (g *Groups) PermissionsForUser(ctx context.Context, userID int64) (permission.Set, error) {
	return g.permissions(ctx, `SELECT DISTINCT gp.storage, gp.permission
		FROM group_permissions gp JOIN user_groups ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = ?`, userID)
}

func (g *Groups) permissions(ctx context.Context, q string, id int64) (permission.Set, error) {
	var rows []struct {
		Storage    string `db:"storage"`
		Permission string `db:"permission"`
	}
	if err := g.db.SelectContext(ctx, &rows, g.db.Rebind(q), id); err != nil {
		return nil, errs.Storage("load permissions", err)
	}
	out := permission.New()
	for _, r := range rows {
		out.Add(permission.Uncamelize(r.Storage) + "." + r.Permission)
	}
	return out, nil
}

func groupExists(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM "groups" WHERE id = ?`), id); err != nil {
		return errs.Storage("check group", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: group %d", ErrNotFound, id)
	}
	return nil
}
