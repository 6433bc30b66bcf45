package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrReportNotFound is returned when no stored artifact matches a name.
var ErrReportNotFound = errors.New("report not found")

const (
	ReportTypeDaily  = "daily"
	ReportTypeManual = "manual"
)

// ReportInfo describes one stored artifact.
type ReportInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ReportStore persists immutable report artifacts by name. Artifacts are
// write-once; Put overwrites silently only if the same name is generated
// twice the same day.
type ReportStore interface {
	Put(reportType, name string, blob []byte) error
	// Get searches the daily prefix first, then manual.
	Get(name string) ([]byte, error)
	List() ([]ReportInfo, error)
	Close() error
}

// BadgerReportStore keeps artifacts in an embedded Badger database, keyed
// "<type>/<name>".
type BadgerReportStore struct {
	db *badger.DB
}

func NewBadgerReportStore(path string) (*BadgerReportStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open report store at %s: %w", path, err)
	}
	return &BadgerReportStore{db: db}, nil
}

func (s *BadgerReportStore) Put(reportType, name string, blob []byte) error {
	if reportType != ReportTypeDaily && reportType != ReportTypeManual {
		return fmt.Errorf("unknown report type %q", reportType)
	}
	key := []byte(reportType + "/" + name)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, blob)
	})
	if err != nil {
		return fmt.Errorf("store report %s: %w", name, err)
	}
	return nil
}

func (s *BadgerReportStore) Get(name string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		for _, typ := range []string{ReportTypeDaily, ReportTypeManual} {
			item, err := txn.Get([]byte(typ + "/" + name))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			blob, err = item.ValueCopy(nil)
			return err
		}
		return ErrReportNotFound
	})
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load report %s: %w", name, err)
	}
	return blob, nil
}

func (s *BadgerReportStore) List() ([]ReportInfo, error) {
	var out []ReportInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			typ, name, ok := strings.Cut(key, "/")
			if !ok {
				continue
			}
			out = append(out, ReportInfo{Name: name, Type: typ})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *BadgerReportStore) Close() error { return s.db.Close() }
