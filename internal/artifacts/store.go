package artifacts

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/kartoza/sales-forecast/internal/features"
	"github.com/kartoza/sales-forecast/internal/scaling"
	"github.com/kartoza/sales-forecast/internal/xgboost"
)

// Artifact names
const (
	ModelArtifact  = "model"
	ScalerArtifact = "scaler"
)

// ErrNotFound is returned when a source has no artifact with the given name
var ErrNotFound = errors.New("artifact not found")

// Source gives read access to the pre-trained artifacts
type Source interface {
	Read(name string) ([]byte, error)
	List() ([]string, error)
	Close() error
}

// Open picks a source for path: SQLite for .db/.sqlite files, a directory otherwise
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return OpenDir(path)
	}
}

// DirSource reads <dir>/<name>.json
type DirSource struct {
	dir string
}

// OpenDir returns a source backed by a directory of JSON files
func OpenDir(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact directory: %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// Read returns the raw artifact bytes
func (s *DirSource) Read(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

// List returns the artifact names in the directory
func (s *DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op
func (s *DirSource) Close() error { return nil }

// SQLiteSource reads artifacts from a read-only SQLite database with an
// artifacts(name TEXT PRIMARY KEY, data BLOB) table
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens an artifact database read-only and checks its schema
func OpenSQLite(path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("artifact database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open artifact database %s: %w", path, err)
	}

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name='artifacts'").Scan(&count)
	if err != nil || count == 0 {
		db.Close()
		return nil, fmt.Errorf("%s is not a valid artifact database", path)
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Read returns the raw artifact bytes
func (s *SQLiteSource) Read(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM artifacts WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

// List returns the artifact names stored in the database
func (s *SQLiteSource) List() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM artifacts ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// LoadScaler reads the scaler artifact and checks it covers the scaled group
func LoadScaler(src Source) (*scaling.StandardScaler, error) {
	data, err := src.Read(ScalerArtifact)
	if err != nil {
		return nil, err
	}
	s, err := scaling.ParseStandardScaler(data)
	if err != nil {
		return nil, err
	}
	if s.Dim() != features.ScaledLen {
		return nil, &features.DimensionMismatchError{Component: "scaler artifact", Expected: features.ScaledLen, Got: s.Dim()}
	}
	return s, nil
}

// LoadModel reads the model artifact and checks it takes the full feature vector
func LoadModel(src Source) (*xgboost.Model, error) {
	data, err := src.Read(ModelArtifact)
	if err != nil {
		return nil, err
	}
	m, err := xgboost.Parse(data)
	if err != nil {
		return nil, err
	}
	if m.NumFeatures() != features.VectorLen {
		return nil, &features.DimensionMismatchError{Component: "model artifact", Expected: features.VectorLen, Got: m.NumFeatures()}
	}
	return m, nil
}

// Bundle is the pair of artifacts the forecast service needs
type Bundle struct {
	Model  *xgboost.Model
	Scaler *scaling.StandardScaler
}

// LoadBundle opens path, loads both artifacts and closes the source.
// A missing artifact is reported together with what the source does hold.
func LoadBundle(path string, logger zerolog.Logger) (*Bundle, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	names, err := src.List()
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	logger.Debug().Str("path", path).Strs("artifacts", names).Msg("Artifact source opened")
	for _, want := range []string{ScalerArtifact, ModelArtifact} {
		if !slices.Contains(names, want) {
			return nil, fmt.Errorf("%s missing from %s (found %v): %w", want, path, names, ErrNotFound)
		}
	}

	scaler, err := LoadScaler(src)
	if err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	model, err := LoadModel(src)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	cfg := model.GetConfig()
	logger.Info().
		Str("path", path).
		Int("trees", cfg.NumTrees).
		Int("features", cfg.NumFeatures).
		Str("objective", cfg.Objective).
		Int("scaled_features", scaler.Dim()).
		Msg("Model and scaler loaded")

	return &Bundle{Model: model, Scaler: scaler}, nil
}
