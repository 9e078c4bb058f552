package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Transactions are opened with an immediate write lock so that concurrent
// find-or-create upserts for the same city serialize instead of racing.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// city_name deliberately carries no unique constraint: effective uniqueness
// per city is the upsert policy's job, not the schema's.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS city_temps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	city_name   TEXT NOT NULL,
	temperature REAL,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_city_temps_city_name ON city_temps(city_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_city_temps_updated_at ON city_temps(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const cityTempColumns = `id, city_name, temperature, created_at, updated_at`

func (s *SQLiteStore) Create(ctx context.Context, cityName string, temperature *float64) (CityTemp, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO city_temps (city_name, temperature, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		cityName, nullFloat(temperature), now, now,
	)
	if err != nil {
		return CityTemp{}, eris.Wrap(err, "sqlite: insert city temp")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return CityTemp{}, eris.Wrap(err, "sqlite: last insert id")
	}

	return CityTemp{
		ID:          id,
		CityName:    cityName,
		Temperature: temperature,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (CityTemp, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cityTempColumns+` FROM city_temps WHERE id = ?`, id)
	return scanCityTemp(row)
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, fields UpdateFields) (CityTemp, error) {
	now := time.Now().UTC()

	query := `UPDATE city_temps SET updated_at = ?`
	args := []any{now}

	if fields.CityName != nil {
		query += `, city_name = ?`
		args = append(args, *fields.CityName)
	}
	if fields.SetTemperature {
		query += `, temperature = ?`
		args = append(args, nullFloat(fields.Temperature))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return CityTemp{}, eris.Wrapf(err, "sqlite: update city temp %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CityTemp{}, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return CityTemp{}, ErrNotFound
	}

	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM city_temps WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete city temp %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, search string) ([]CityTemp, error) {
	query := `SELECT ` + cityTempColumns + ` FROM city_temps`
	var args []any

	if search != "" {
		query += ` WHERE city_name LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(search))
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	return s.queryCityTemps(ctx, query, args...)
}

func (s *SQLiteStore) Suggest(ctx context.Context, name string, limit int) ([]CityTemp, error) {
	query := `SELECT ` + cityTempColumns + ` FROM city_temps
		WHERE city_name LIKE ? ESCAPE '\'
		ORDER BY city_name COLLATE NOCASE ASC
		LIMIT ?`
	return s.queryCityTemps(ctx, query, containsPattern(name), limit)
}

func (s *SQLiteStore) FindByCity(ctx context.Context, name string) (CityTemp, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cityTempColumns+` FROM city_temps
		 WHERE city_name = ? COLLATE NOCASE
		 ORDER BY updated_at DESC LIMIT 1`,
		name,
	)
	ct, err := scanCityTemp(row)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return CityTemp{}, false, nil
		}
		return CityTemp{}, false, err
	}
	return ct, true, nil
}

// UpsertByCity performs the case-insensitive find-or-create inside a single
// write transaction, so two simultaneous upserts for the same city cannot
// both observe "no match" and insert duplicates.
func (s *SQLiteStore) UpsertByCity(ctx context.Context, cityName string, temperature *float64) (CityTemp, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CityTemp{}, false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+cityTempColumns+` FROM city_temps
		 WHERE city_name = ? COLLATE NOCASE
		 ORDER BY updated_at DESC LIMIT 1`,
		cityName,
	)
	existing, err := scanCityTemp(row)

	now := time.Now().UTC()
	var (
		result  CityTemp
		created bool
	)

	switch {
	case eris.Is(err, ErrNotFound):
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO city_temps (city_name, temperature, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			cityName, nullFloat(temperature), now, now,
		)
		if execErr != nil {
			return CityTemp{}, false, eris.Wrap(execErr, "sqlite: upsert insert")
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return CityTemp{}, false, eris.Wrap(idErr, "sqlite: last insert id")
		}
		result = CityTemp{ID: id, CityName: cityName, Temperature: temperature, CreatedAt: now, UpdatedAt: now}
		created = true

	case err != nil:
		return CityTemp{}, false, err

	default:
		if _, execErr := tx.ExecContext(ctx,
			`UPDATE city_temps SET city_name = ?, temperature = ?, updated_at = ? WHERE id = ?`,
			cityName, nullFloat(temperature), now, existing.ID,
		); execErr != nil {
			return CityTemp{}, false, eris.Wrapf(execErr, "sqlite: upsert update %d", existing.ID)
		}
		result = CityTemp{ID: existing.ID, CityName: cityName, Temperature: temperature, CreatedAt: existing.CreatedAt, UpdatedAt: now}
	}

	if err := tx.Commit(); err != nil {
		return CityTemp{}, false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return result, created, nil
}

func (s *SQLiteStore) queryCityTemps(ctx context.Context, query string, args ...any) ([]CityTemp, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query city temps")
	}
	defer rows.Close()

	var result []CityTemp
	for rows.Next() {
		var (
			ct   CityTemp
			temp sql.NullFloat64
		)
		if err := rows.Scan(&ct.ID, &ct.CityName, &temp, &ct.CreatedAt, &ct.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city temp")
		}
		if temp.Valid {
			v := temp.Float64
			ct.Temperature = &v
		}
		result = append(result, ct)
	}
	return result, eris.Wrap(rows.Err(), "sqlite: iterate city temps")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCityTemp(row rowScanner) (CityTemp, error) {
	var (
		ct   CityTemp
		temp sql.NullFloat64
	)
	err := row.Scan(&ct.ID, &ct.CityName, &temp, &ct.CreatedAt, &ct.UpdatedAt)
	if err == sql.ErrNoRows {
		return CityTemp{}, ErrNotFound
	}
	if err != nil {
		return CityTemp{}, eris.Wrap(err, "sqlite: scan city temp")
	}
	if temp.Valid {
		v := temp.Float64
		ct.Temperature = &v
	}
	return ct, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// containsPattern builds a LIKE pattern matching any occurrence of s,
// with LIKE metacharacters in s escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
