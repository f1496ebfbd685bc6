package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Rows per INSERT statement; 7 parameters each keeps well under the
// 65535 bind parameter limit.
const insertChunk = 1000

var datasetNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PostgresCatalog stores each snapshot as its own table in schema. Tables are
// created and filled inside one transaction, so a snapshot becomes visible
// only on commit.
type PostgresCatalog struct {
	db     *sql.DB
	schema string
}

func NewPostgresCatalog(db *sql.DB, schema string) *PostgresCatalog {
	if schema == "" {
		schema = "public"
	}
	return &PostgresCatalog{db: db, schema: schema}
}

func (p *PostgresCatalog) table(name string) (string, error) {
	if !datasetNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid dataset name %q", name)
	}
	return pgx.Identifier{p.schema, name}.Sanitize(), nil
}

func (p *PostgresCatalog) List(ctx context.Context, prefix string) ([]string, error) {
	q := `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type = 'BASE TABLE'
  AND left(table_name, length($2::text)) = $2::text
ORDER BY table_name`
	rows, err := p.db.QueryContext(ctx, q, p.schema, prefix)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return names, nil
}

func (p *PostgresCatalog) Publish(ctx context.Context, name string, rows []Row, overwrite bool) error {
	tbl, err := p.table(name)
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "publish", Err: err}
	}
	defer tx.Rollback()

	if overwrite {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+tbl); err != nil {
			return &StorageError{Op: "publish", Err: fmt.Errorf("drop %s: %w", name, err)}
		}
	}
	create := `CREATE TABLE ` + tbl + ` (
    ord               INTEGER PRIMARY KEY,
    linha             TEXT    NOT NULL,
    linha_lower       TEXT    NOT NULL,
    trip_id           TEXT    NOT NULL,
    pontos_parada     INTEGER NOT NULL,
    capacidade        INTEGER NOT NULL,
    lotacao_por_ponto INTEGER[] NOT NULL
)`
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return &StorageError{Op: "publish", Err: fmt.Errorf("create %s: %w", name, err)}
	}

	for lo := 0; lo < len(rows); lo += insertChunk {
		hi := min(lo+insertChunk, len(rows))
		var sb strings.Builder
		sb.WriteString(`INSERT INTO ` + tbl + ` (ord, linha, linha_lower, trip_id, pontos_parada, capacidade, lotacao_por_ponto) VALUES `)
		args := make([]any, 0, (hi-lo)*7)
		for i := lo; i < hi; i++ {
			if i > lo {
				sb.WriteString(", ")
			}
			n := len(args)
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
			r := rows[i]
			args = append(args, i, r.RouteID, strings.ToLower(r.RouteID), r.TripID, r.StopCount, r.Capacity, toInt32s(r.Occupancy))
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return &StorageError{Op: "publish", Err: fmt.Errorf("insert %s: %w", name, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "publish", Err: err}
	}
	return nil
}

// Scan matches against linha_lower, lowercased in Go at publish time, so the
// result does not depend on the database collation.
func (p *PostgresCatalog) Scan(ctx context.Context, name, routeSubstr string, limit int) ([]Row, error) {
	tbl, err := p.table(name)
	if err != nil {
		return nil, err
	}
	routeSubstr = strings.ToLower(strings.TrimSpace(routeSubstr))
	q := `SELECT linha, trip_id, pontos_parada, capacidade, array_to_json(lotacao_por_ponto)::text
FROM ` + tbl + `
WHERE strpos(linha_lower, $1) > 0
ORDER BY ord
LIMIT $2`
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := p.db.QueryContext(ctx, q, routeSubstr, lim)
	if err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var occ string
		if err := rows.Scan(&r.RouteID, &r.TripID, &r.StopCount, &r.Capacity, &occ); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		if err := json.Unmarshal([]byte(occ), &r.Occupancy); err != nil {
			return nil, &StorageError{Op: "scan", Err: fmt.Errorf("decode lotacao_por_ponto: %w", err)}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}
	return out, nil
}

func (p *PostgresCatalog) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func toInt32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}
