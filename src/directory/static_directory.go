package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/mosaicnetworks/axolotl/src/common"
)

// StaticDirectory is an in-memory Store.
type StaticDirectory struct {
	l       sync.Mutex
	records map[string]Record
}

// NewStaticDirectory creates a StaticDirectory holding the given records.
func NewStaticDirectory(records ...Record) *StaticDirectory {
	s := &StaticDirectory{
		records: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		s.records[r.PublicKey] = r
	}
	return s
}

// Lookup implements the Directory interface.
func (s *StaticDirectory) Lookup(ctx context.Context, key string) (Record, error) {
	s.l.Lock()
	defer s.l.Unlock()

	r, ok := s.records[key]
	if !ok {
		return Record{}, common.NewStoreErr("Record", common.KeyNotFound, key)
	}
	return r, nil
}

// Announce implements the Registrar interface.
func (s *StaticDirectory) Announce(ctx context.Context, rec Record) error {
	if rec.PublicKey == "" {
		return common.NewStoreErr("Record", common.InvalidKey, rec.PublicKey)
	}

	s.l.Lock()
	s.records[rec.PublicKey] = rec
	s.l.Unlock()
	return nil
}

// List implements the Store interface. Records are sorted by key.
func (s *StaticDirectory) List(ctx context.Context) ([]Record, error) {
	s.l.Lock()
	defer s.l.Unlock()

	res := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PublicKey < res[j].PublicKey })
	return res, nil
}
