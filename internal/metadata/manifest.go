package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockflow/internal/storage"
)

const (
	metadataDir  = "_metadata"
	manifestFile = "manifest.json"
)

// DataFile describes a single object written for a table.
type DataFile struct {
	Path        string            `json:"path"`
	Format      string            `json:"format"`
	FileSize    int64             `json:"file_size_in_bytes"`
	RecordCount int64             `json:"record_count"`
	Partition   map[string]string `json:"partition,omitempty"`
}

// Manifest lists the complete content of a table after a full overwrite.
type Manifest struct {
	FormatVersion int        `json:"format-version"`
	TableUUID     string     `json:"table-uuid"`
	Table         string     `json:"table"`
	Location      string     `json:"location"`
	RunID         string     `json:"run-id"`
	CommittedAt   time.Time  `json:"committed-at"`
	Columns       []string   `json:"columns"`
	RecordCount   int64      `json:"record-count"`
	Files         []DataFile `json:"files"`
}

// Generator collects the files of one table write and commits them as the
// table's manifest.
type Generator struct {
	store     storage.Store
	table     string
	tableUUID string
	files     []DataFile
}

// NewGenerator returns a generator for the table stored under prefix. The
// table UUID is derived from the location so it is stable across runs.
func NewGenerator(store storage.Store, table string) *Generator {
	return &Generator{
		store:     store,
		table:     table,
		tableUUID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(store.URI(table))).String(),
	}
}

// ManifestKey is where the manifest of table lives.
func ManifestKey(table string) string {
	return path.Join(table, metadataDir, manifestFile)
}

// IsMetadataKey reports whether key belongs to a table's metadata area.
func IsMetadataKey(table, key string) bool {
	return strings.HasPrefix(key, path.Join(table, metadataDir)+"/")
}

// AddFile records a data file written for the table.
func (g *Generator) AddFile(df DataFile) {
	g.files = append(g.files, df)
}

// Files returns the recorded data files, sorted by path.
func (g *Generator) Files() []DataFile {
	out := append([]DataFile(nil), g.files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Commit writes the manifest. It must run after every data file is in place.
func (g *Generator) Commit(ctx context.Context, runID string, columns []string, committedAt time.Time) (*Manifest, error) {
	m := &Manifest{
		FormatVersion: 1,
		TableUUID:     g.tableUUID,
		Table:         g.table,
		Location:      g.store.URI(g.table),
		RunID:         runID,
		CommittedAt:   committedAt.UTC(),
		Columns:       columns,
		Files:         g.Files(),
	}
	for _, f := range m.Files {
		m.RecordCount += f.RecordCount
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := g.store.Write(ctx, ManifestKey(g.table), b); err != nil {
		return nil, fmt.Errorf("write manifest for %s: %w", g.table, err)
	}
	return m, nil
}

// WriteCatalogEntry records where the table's manifest lives under
// catalogPrefix.
func (g *Generator) WriteCatalogEntry(ctx context.Context, catalogPrefix, name string) error {
	entry := map[string]string{
		"name":              name,
		"table_uuid":        g.tableUUID,
		"metadata_location": g.store.URI(ManifestKey(g.table)),
	}
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return g.store.Write(ctx, path.Join(catalogPrefix, name+".json"), b)
}

// ReadManifest loads the current manifest of table.
func ReadManifest(ctx context.Context, store storage.Store, table string) (*Manifest, error) {
	b, err := store.Read(ctx, ManifestKey(table))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest for %s: %w", table, err)
	}
	return &m, nil
}
