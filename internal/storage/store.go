package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/telemetry"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one saved run.
type RunMetadata struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Preset    string    `json:"preset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seed      int64     `json:"seed,omitempty"`
	Cycles    int       `json:"cycles"`

	Kp                float64 `json:"p_gain"`
	Ki                float64 `json:"i_gain"`
	SampleInterval    float64 `json:"sample_interval"`
	SmoothingSetPoint float64 `json:"smoothing_set_point"`
	SmoothingPosition float64 `json:"smoothing_position"`
	Deadzone          uint32  `json:"deadzone"`
	IntegralLimit     float64 `json:"integral_limit,omitempty"`
	ErrorMode         string  `json:"error_mode"`

	Metrics map[string]float64 `json:"metrics"`
}

// Save writes meta and the records under a fresh run directory and returns
// its ID. meta.ID, Timestamp and Cycles are filled in.
func (s *Store) Save(meta RunMetadata, records []telemetry.Record) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", meta.Source, now.UnixMilli())
	runDir := filepath.Join(s.baseDir, runID)
	for i := 1; ; i++ {
		if _, err := os.Stat(runDir); os.IsNotExist(err) {
			break
		}
		runID = fmt.Sprintf("%s_%d_%d", meta.Source, now.UnixMilli(), i)
		runDir = filepath.Join(s.baseDir, runID)
	}

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Cycles = len(records)

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", errors.Wrap(err, "write metadata")
	}

	csvFile, err := os.Create(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, records); err != nil {
		return "", errors.Wrap(err, "write samples")
	}
	return runID, nil
}

// WriteCSV writes a header row and one row per record.
func WriteCSV(w io.Writer, records []telemetry.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(telemetry.Header()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s metadata", runID)
	}
	return &meta, nil
}

// LoadSamples reads back the records of a run.
func (s *Store) LoadSamples(runID string) ([]telemetry.Record, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses what WriteCSV wrote.
func ReadCSV(r io.Reader) ([]telemetry.Record, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []telemetry.Record{}, nil
	}

	records := make([]telemetry.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := telemetry.ParseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Export is the JSON form of a run.
type Export struct {
	RunMetadata
	Samples []telemetry.Record `json:"samples"`
}

// ExportJSON writes meta and records as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, records []telemetry.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{RunMetadata: meta, Samples: records})
}
