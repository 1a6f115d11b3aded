package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/san-kum/vlasim/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "states.csv"
)

var ErrRunFinished = errors.New("run already finished")

type Store struct {
	baseDir string
	clock   clock.Clock
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, clock: clock.New()}
}

// WithClock replaces the wall clock used for run ids and timestamps.
func (s *Store) WithClock(c clock.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Scene          string             `json:"scene"`
	Prompt         string             `json:"prompt"`
	Policy         string             `json:"policy"`
	Timestamp      time.Time          `json:"timestamp"`
	Dt             float64            `json:"dt"`
	StepsPerAction int                `json:"steps_per_action"`
	Actions        int                `json:"actions"`
	Integrator     string             `json:"integrator"`
	Iterations     int                `json:"iterations"`
	Resets         int                `json:"resets"`
	Steps          int                `json:"steps"`
	Elapsed        float64            `json:"elapsed"`
	Metrics        map[string]float64 `json:"metrics"`
	Videos         []string           `json:"videos,omitempty"`
}

// Run streams a rollout trajectory to disk as the robot steps. It is a
// sim.Observer; write errors are latched and reported by Finish.
type Run struct {
	ID       string
	Started  time.Time
	dir      string
	f        *os.File
	buf      *bufio.Writer
	w        *csv.Writer
	header   bool
	rows     int
	err      error
	finished bool
}

var _ sim.Observer = (*Run)(nil)

// Create starts a new run directory for the named scene.
func (s *Store) Create(scene string) (*Run, error) {
	now := s.clock.Now()
	runID := fmt.Sprintf("%s_%s", scene, now.Format("20060102-150405.000"))
	runDir := s.Dir(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)

	return &Run{
		ID:      runID,
		Started: now,
		dir:     runDir,
		f:       f,
		buf:     buf,
		w:       csv.NewWriter(buf),
	}, nil
}

func (r *Run) Dir() string { return r.dir }

func (r *Run) Rows() int { return r.rows }

func (r *Run) OnStep(x sim.State, u sim.Control, t float64) {
	if r.err != nil || r.finished {
		return
	}

	if !r.header {
		header := []string{"time"}
		for i := range x {
			header = append(header, fmt.Sprintf("x%d", i))
		}
		for i := range x {
			header = append(header, fmt.Sprintf("u%d", i))
		}
		if r.err = r.w.Write(header); r.err != nil {
			return
		}
		r.header = true
	}

	row := make([]string, 0, 1+2*len(x))
	row = append(row, strconv.FormatFloat(t, 'f', 6, 64))
	for _, val := range x {
		row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
	}
	for i := range x {
		val := 0.0
		if i < len(u) {
			val = u[i]
		}
		row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
	}

	if r.err = r.w.Write(row); r.err == nil {
		r.rows++
	}
}

// Finish flushes the trajectory and writes the run metadata. ID and
// Timestamp are filled in from the run.
func (r *Run) Finish(meta RunMetadata) error {
	if r.finished {
		return ErrRunFinished
	}
	r.finished = true

	r.w.Flush()
	err := multierr.Combine(r.err, r.w.Error(), r.buf.Flush(), r.f.Close())

	meta.ID = r.ID
	meta.Timestamp = r.Started
	meta.Steps = r.rows
	return multierr.Append(err, writeMetadata(filepath.Join(r.dir, metadataFile), meta))
}

func writeMetadata(path string, meta RunMetadata) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every readable run, newest first.
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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Trajectory is a loaded states.csv: per-row time, joint positions and
// targets.
type Trajectory struct {
	Times   []float64
	States  [][]float64
	Targets [][]float64
}

// Joint returns the position series of joint i.
func (tr *Trajectory) Joint(i int) []float64 {
	out := make([]float64, 0, len(tr.States))
	for _, s := range tr.States {
		if i < len(s) {
			out = append(out, s[i])
		}
	}
	return out
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &Trajectory{}
	if len(records) < 2 {
		return tr, nil
	}

	dofs := (len(records[0]) - 1) / 2
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) != 1+2*dofs {
			return nil, fmt.Errorf("%s row %d: %d fields, want %d", trajectoryFile, i, len(record), 1+2*dofs)
		}

		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", trajectoryFile, i, err)
			}
			vals[j] = v
		}

		tr.Times = append(tr.Times, vals[0])
		tr.States = append(tr.States, vals[1:1+dofs])
		tr.Targets = append(tr.Targets, vals[1+dofs:])
	}

	return tr, nil
}

// ExportData is the single-document JSON form of a run.
type ExportData struct {
	RunMetadata
	Times   []float64   `json:"times"`
	States  [][]float64 `json:"states"`
	Targets [][]float64 `json:"targets"`
}

// Export writes a run's metadata and trajectory as one JSON document.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{
		RunMetadata: *meta,
		Times:       tr.Times,
		States:      tr.States,
		Targets:     tr.Targets,
	})
}
