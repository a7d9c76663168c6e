package checkpoint

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"MovieHarvester/internal/config"
	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/metrics"
	"MovieHarvester/internal/ports"
)

// header is the fixed column order shared by all three output files and
// consumed by the downstream enrichment jobs.
var header = []string{
	"id", "title", "original_language", "release_date",
	"budget", "revenue", "roi",
	"vote_average", "vote_count", "runtime", "success",
}

// Store writes record snapshots as CSV files. Every write is a full replace
// through a temp file + rename, so an interrupted process can never leave a
// torn snapshot behind.
type Store struct {
	fullPath     string
	balancedPath string
	partialPath  string
}

var _ ports.DatasetStore = (*Store)(nil)

// NewStore wires the configured output paths.
func NewStore(cfg config.OutputConfig) *Store {
	return &Store{
		fullPath:     cfg.FullPath,
		balancedPath: cfg.BalancedPath,
		partialPath:  cfg.PartialPath,
	}
}

// Checkpoint persists the periodic crash-recovery snapshot.
func (s *Store) Checkpoint(records []domain.Record) error {
	if err := writeSnapshot(s.partialPath, records); err != nil {
		return err
	}
	metrics.CheckpointWrites.Inc()
	return nil
}

// WriteFull persists the complete pool at the end of the harvest.
func (s *Store) WriteFull(records []domain.Record) error {
	return writeSnapshot(s.fullPath, records)
}

// WriteBalanced persists the balanced sample.
func (s *Store) WriteBalanced(records []domain.Record) error {
	return writeSnapshot(s.balancedPath, records)
}

func writeSnapshot(path string, records []domain.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(row(r)); err != nil {
			_ = f.Close()
			return fmt.Errorf("write record %d: %w", r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", path, err)
	}

	return nil
}

func row(r domain.Record) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Title,
		r.OriginalLanguage,
		r.ReleaseDate,
		strconv.FormatInt(r.Budget, 10),
		strconv.FormatInt(r.Revenue, 10),
		strconv.FormatFloat(r.Ratio, 'f', 4, 64),
		strconv.FormatFloat(r.VoteAverage, 'f', -1, 64),
		strconv.FormatInt(r.VoteCount, 10),
		strconv.Itoa(r.Runtime),
		strconv.Itoa(r.Label.Flag()),
	}
}

// LoadLatest returns the freshest snapshot available for resuming. The
// periodic flush lands on the partial path while the full path is only
// rewritten at the end of a successful harvest, so after a mid-run crash the
// partial file can be ahead of the full one; the snapshot with more records
// wins, the full one on a tie.
func LoadLatest(fullPath, partialPath string) ([]domain.Record, error) {
	full, err := Load(fullPath)
	if err != nil {
		return nil, err
	}
	partial, err := Load(partialPath)
	if err != nil {
		return nil, err
	}
	if len(partial) > len(full) {
		return partial, nil
	}
	return full, nil
}

// Load reads a previously written snapshot so a restarted run resumes with
// its records and skips re-fetching their identifiers. A missing file is a
// fresh start, not an error.
func Load(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range header {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("snapshot %s: missing column %s", path, name)
		}
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, fields := range rows[1:] {
		r, err := parseRow(fields, col)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", path, err)
		}
		records = append(records, r)
	}

	return records, nil
}

func parseRow(fields []string, col map[string]int) (domain.Record, error) {
	id, err := strconv.ParseInt(fields[col["id"]], 10, 64)
	if err != nil {
		return domain.Record{}, fmt.Errorf("bad id %q: %w", fields[col["id"]], err)
	}

	label := domain.LabelNegative
	if fields[col["success"]] == "1" {
		label = domain.LabelPositive
	}

	budget, _ := strconv.ParseInt(fields[col["budget"]], 10, 64)
	revenue, _ := strconv.ParseInt(fields[col["revenue"]], 10, 64)
	ratio, _ := strconv.ParseFloat(fields[col["roi"]], 64)
	voteAvg, _ := strconv.ParseFloat(fields[col["vote_average"]], 64)
	voteCount, _ := strconv.ParseInt(fields[col["vote_count"]], 10, 64)
	runtime, _ := strconv.Atoi(fields[col["runtime"]])

	return domain.Record{
		ID:               id,
		Title:            fields[col["title"]],
		OriginalLanguage: fields[col["original_language"]],
		ReleaseDate:      fields[col["release_date"]],
		Budget:           budget,
		Revenue:          revenue,
		Ratio:            ratio,
		VoteAverage:      voteAvg,
		VoteCount:        voteCount,
		Runtime:          runtime,
		Label:            label,
	}, nil
}
