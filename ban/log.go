package ban

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/errs"
)

const maxCode = CodeUsernameError + CodePasswordError

// Entry is one append-only ban log row. LoggedAt is filled by Log.Add.
type Entry struct {
	ID       int64     `db:"id"`
	IP       string    `db:"ip"`
	Text     string    `db:"text"`
	Code     Code      `db:"code"`
	LoggedAt time.Time `db:"-"`
	UserID   int64     `db:"user_id"`
	Client   string    `db:"client"`
	URL      string    `db:"url"`
}

type entryRow struct {
	Entry
	LoggedAtUnix int64 `db:"logged_at"`
}

// Log reads and appends ban_log rows.
type Log struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLog builds a Log on conn.
func NewLog(conn *sqlx.DB) *Log {
	return &Log{db: conn, now: time.Now}
}

// Add appends e and returns its id. Codes outside the known range are
// stored as CodeBanable.
func (l *Log) Add(ctx context.Context, e Entry) (int64, error) {
	ip, err := normalizeIP(e.IP)
	if err != nil {
		return 0, err
	}
	e.IP = ip
	if e.Code < CodeBanActivated || e.Code > maxCode {
		e.Code = CodeBanable
	}

	q := l.db.Rebind(`INSERT INTO ban_log (ip, text, code, logged_at, user_id, client, url)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err = l.db.QueryRowxContext(ctx, q,
		e.IP, e.Text, int(e.Code), l.now().Unix(), e.UserID, e.Client, e.URL,
	).Scan(&id)
	if err != nil {
		return 0, errs.Storage("append ban log", err)
	}
	return id, nil
}

// CountSince counts banable rows of ip logged after since.
func (l *Log) CountSince(ctx context.Context, ip string, since time.Time) (int, error) {
	q := l.db.Rebind(`SELECT COUNT(*) FROM ban_log WHERE ip = ? AND code > 0 AND logged_at > ?`)
	var n int
	if err := sqlx.GetContext(ctx, l.db, &n, q, ip, since.Unix()); err != nil {
		return 0, errs.Storage("count ban log", err)
	}
	return n, nil
}

// LastActivation returns the time of the newest ban activation row of ip.
func (l *Log) LastActivation(ctx context.Context, ip string) (time.Time, bool, error) {
	q := l.db.Rebind(`SELECT logged_at FROM ban_log WHERE ip = ? AND code = 0 ORDER BY logged_at DESC, id DESC LIMIT 1`)
	var ts int64
	if err := sqlx.GetContext(ctx, l.db, &ts, q, ip); err != nil {
		if db.IsNoRows(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, errs.Storage("last ban activation", err)
	}
	return time.Unix(ts, 0), true, nil
}

// Recent returns the newest rows of ip, newest first.
func (l *Log) Recent(ctx context.Context, ip string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := l.db.Rebind(`SELECT id, ip, text, code, logged_at, user_id, client, url
		FROM ban_log WHERE ip = ? ORDER BY logged_at DESC, id DESC LIMIT ?`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, l.db, &rows, q, ip, limit); err != nil {
		return nil, errs.Storage("list ban log", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.Entry
		e.LoggedAt = time.Unix(r.LoggedAtUnix, 0)
		out = append(out, e)
	}
	return out, nil
}
