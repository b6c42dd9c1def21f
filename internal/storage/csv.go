package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSVStore keeps every snapshot in one CSV file with a fixed header.
// The whole file is read on Load and rewritten on Save.
//
// Saves are serialized within this process only. Two processes writing the
// same file can still lose updates (last rewrite wins).
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore creates a store backed by the file at path
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path
func (s *CSVStore) Path() string {
	return s.path
}

// Ensure creates the file with just the header row when it is missing or
// empty. An existing non-empty file is left alone.
func (s *CSVStore) Ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}

	info, err := os.Stat(s.path)
	switch {
	case err == nil && info.Size() > 0:
		return nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		log.Printf("[store] Creating snapshot file %s", s.path)
		return s.writeAll(nil)
	default:
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
}

// Load reads every snapshot in file order
func (s *CSVStore) Load() ([]Snapshot, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading header: %v", ErrStoreCorrupt, s.path, err)
	}
	if !sameColumns(header) {
		return nil, fmt.Errorf("%w: %s: header %v does not match %v", ErrStoreCorrupt, s.path, header, Columns)
	}

	snaps := []Snapshot{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, s.path, err)
		}

		line, _ := r.FieldPos(0)
		snap, err := decodeRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrStoreCorrupt, s.path, line, err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

// Save appends rows after the current contents and rewrites the file.
// A corrupt file is never overwritten.
func (s *CSVStore) Save(rows []Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Load()
	if err != nil {
		return err
	}

	all := make([]Snapshot, 0, len(existing)+len(rows))
	all = append(all, existing...)
	all = append(all, rows...)

	if err := s.writeAll(all); err != nil {
		return err
	}

	log.Printf("[store] Saved %d snapshot rows (%d total)", len(rows), len(all))
	return nil
}

// writeAll replaces the file through a temp file and rename
func (s *CSVStore) writeAll(snaps []Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, snap := range snaps {
		if err := w.Write(encodeRecord(snap)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush snapshots: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshots: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func sameColumns(header []string) bool {
	if len(header) != len(Columns) {
		return false
	}
	for i, c := range Columns {
		if header[i] != c {
			return false
		}
	}
	return true
}

func encodeRecord(s Snapshot) []string {
	record := []string{
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		s.Battletag,
		s.PlayerID,
		s.Gamemode,
		s.Platform,
		s.Hero,
	}
	for _, v := range s.numeric() {
		record = append(record, formatNumber(*v))
	}
	return record
}

func decodeRecord(record []string) (Snapshot, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(record[0]))
	if err != nil {
		return Snapshot{}, fmt.Errorf("bad timestamp %q: %w", record[0], err)
	}

	snap := Snapshot{
		Timestamp: ts.UTC(),
		Battletag: record[1],
		PlayerID:  record[2],
		Gamemode:  record[3],
		Platform:  record[4],
		Hero:      record[5],
	}
	for i, v := range snap.numeric() {
		n, err := parseNumber(record[6+i])
		if err != nil {
			return Snapshot{}, fmt.Errorf("bad %s %q: %w", Columns[6+i], record[6+i], err)
		}
		*v = n
	}
	return snap, nil
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseNumber(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, errors.New("not a finite number")
	}
	return &n, nil
}
