package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	cols    string
	table   string
	order   string
	byPlant bool
}

var dbQueries = map[string]dbQuery{
	"snapshots": {cols: "tick,path,garden_id,seed,chunks,plants", table: "snapshots", order: "tick DESC"},
	"ticks":     {cols: "tick,season,digest,events,drops,harvests,removed", table: "ticks", order: "tick DESC"},
	"events":    {cols: "tick,seq,cx,cz,plant_id,key,COALESCE(part,'') AS part", table: "events", order: "tick DESC, seq DESC", byPlant: true},
	"drops":     {cols: "tick,seq,plant_id,part,item,quantity", table: "drops", order: "tick DESC, seq DESC", byPlant: true},
	"harvests":  {cols: "tick,seq,plant_id,part,special,code", table: "harvests", order: "tick DESC, seq DESC", byPlant: true},
}

// build renders the SELECT and its args. Filters that do not apply to the table are ignored.
func (q dbQuery) build(sinceTick uint64, plantID string, limit int) (string, []any) {
	where := []string{"tick >= ?"}
	args := []any{int64(sinceTick)}
	if q.byPlant && plantID != "" {
		where = append(where, "plant_id = ?")
		args = append(args, plantID)
	}
	args = append(args, limit)
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT ?",
		q.cols, q.table, strings.Join(where, " AND "), q.order), args
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gardenID := fs.String("garden", "", "garden id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "only rows at or after this tick")
	plantID := fs.String("plant", "", "plant_id filter (events, drops, harvests)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	query, ok := dbQueries[q]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown query %q (snapshots|ticks|events|drops|harvests)\n", q)
		os.Exit(2)
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*gardenID) == "" {
			fmt.Fprintln(os.Stderr, "missing -garden or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "gardens", *gardenID, "index", "garden.sqlite")
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	stmt, qargs := query.build(*sinceTick, *plantID, *limit)
	if err := queryJSON(db, stmt, qargs...); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

// queryJSON prints one JSON object per row, keyed by column name.
func queryJSON(db *sql.DB, query string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		printJSON(row)
	}
	return rows.Err()
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
