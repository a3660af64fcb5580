// Package harvest discovers new data files in the harvest directory and
// prepares ledger candidates for them. Discovery is read-only on disk; the
// ledger decides what is actually new.
package harvest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
	"github.com/couchcryptid/gauge-data-ingest/internal/observability"
)

// Discoverer scans one harvest directory for files matching a source's
// filename prefix.
type Discoverer struct {
	harvestDir string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewDiscoverer(harvestDir string, logger *slog.Logger, metrics *observability.Metrics) *Discoverer {
	return &Discoverer{harvestDir: harvestDir, logger: logger, metrics: metrics}
}

// Discover returns ledger candidates for files matching prefix that are not
// in the known set. When the canonical prefix matches nothing and a legacy
// prefix is given, the legacy prefix is tried instead; the two result sets
// are never mixed in one pass. For model scopes timemark carries the
// externally supplied run epoch; observation scopes pass it empty and take
// the filename's first embedded timestamp.
//
// Files that cannot yield a candidate (no timestamp token, unreadable body,
// missing TIME column) are skipped and logged, never fatal to the pass.
// Candidates whose body holds no data rows come back already ingested.
func (d *Discoverer) Discover(sc domain.LedgerScope, prefix, legacyPrefix, timemark string, known map[string]bool) ([]domain.HarvestFile, error) {
	paths, err := filepath.Glob(filepath.Join(d.harvestDir, prefix+"*.csv"))
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", prefix, err)
	}
	if len(paths) == 0 && legacyPrefix != "" {
		paths, err = filepath.Glob(filepath.Join(d.harvestDir, legacyPrefix+"*.csv"))
		if err != nil {
			return nil, fmt.Errorf("discover legacy %s: %w", legacyPrefix, err)
		}
		if len(paths) > 0 {
			d.logger.Info("canonical prefix matched nothing, using legacy prefix",
				"prefix", prefix, "legacy_prefix", legacyPrefix, "matches", len(paths))
		}
	}

	var files []domain.HarvestFile
	for _, path := range paths {
		name := filepath.Base(path)
		if known[name] {
			continue
		}

		candidate, reason, err := d.candidate(sc, path, name, timemark)
		if err != nil {
			d.logger.Warn("skipping harvest file", "file", name, "reason", reason, "error", err)
			d.metrics.FilesSkipped.WithLabelValues(string(sc.Scope), reason).Inc()
			continue
		}
		files = append(files, candidate)
	}

	domain.SortFiles(files)
	d.metrics.FilesDiscovered.WithLabelValues(string(sc.Scope)).Add(float64(len(files)))
	return files, nil
}

// HarvestDir returns the directory this discoverer scans.
func (d *Discoverer) HarvestDir() string {
	return d.harvestDir
}

// GlobNames returns the base names of harvest files matching pattern, in
// directory order. The model pipeline uses this to learn which station types
// a run produced before any per-source discovery.
func (d *Discoverer) GlobNames(pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(d.harvestDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	return names, nil
}

func (d *Discoverer) candidate(sc domain.LedgerScope, path, name, timemark string) (domain.HarvestFile, string, error) {
	dataDateTime := timemark
	if dataDateTime == "" {
		tokens := domain.ExtractTimestamps(name)
		if len(tokens) == 0 {
			return domain.HarvestFile{}, "no_timestamp", domain.ErrNoTimestamp
		}
		dataDateTime = tokens[0]
	}

	begin, end, err := timeRange(path)
	if err != nil {
		return domain.HarvestFile{}, "malformed", err
	}

	f := domain.HarvestFile{
		DirPath:       d.harvestDir,
		FileName:      name,
		DataDateTime:  dataDateTime,
		DataBeginTime: begin,
		DataEndTime:   end,
		DataSource:    sc.DataSource,
		SourceName:    sc.SourceName,
		SourceArchive: sc.SourceArchive,
	}
	if f.Empty() {
		// Nothing to load, so the ledger records it as done immediately and
		// rediscovery never reconsiders it.
		d.logger.Info("harvest file has no data rows, registering as ingested", "file", name)
		d.metrics.FilesSkipped.WithLabelValues(string(sc.Scope), "empty").Inc()
		f.Ingested = true
	}
	return f, "", nil
}

// timeRow is the only column discovery reads from a harvest body.
type timeRow struct {
	Time string `csv:"TIME"`
}

// timeRange scans a harvest CSV for the minimum and maximum TIME values.
// Times are ISO strings, so lexical ordering is time ordering. Both results
// are empty when the file has a header but no data rows.
func timeRange(path string) (minTime, maxTime string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		if errors.Is(err, io.EOF) {
			// A zero-byte file counts as empty, not malformed.
			return "", "", nil
		}
		return "", "", err
	}
	if !slices.Contains(dec.Header(), "TIME") {
		return "", "", errors.New("no TIME column")
	}

	for {
		var row timeRow
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return "", "", err
		}
		// A blank TIME must not fold into the range: the empty string sorts
		// before every timestamp and would clear the minimum.
		if row.Time == "" {
			continue
		}
		if minTime == "" || row.Time < minTime {
			minTime = row.Time
		}
		if row.Time > maxTime {
			maxTime = row.Time
		}
	}
	return minTime, maxTime, nil
}
