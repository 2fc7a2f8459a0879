package persistent

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	assign "github.com/awused/go-assign"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	ErrNotFound   = errors.New("assign: no record for experiment and unit")
	ErrBadVersion = errors.New("assign: store was written by an incompatible version")
	ErrBadKey     = errors.New("assign: experiment and unit must not contain NUL")
)

/**
A Store that records evaluated assignments on disk using leveldb, keyed by
experiment and unit.

Recording is the caller's choice; nothing in an Assignment writes here on its
own. The records let a later run check that the same definition still yields
the same values.

Safe for concurrent use from multiple goroutines.
*/
type Store struct {
	m  *sync.Mutex
	db *leveldb.DB
}

// Record is one stored assignment.
type Record struct {
	Experiment string         `json:"-"`
	Unit       string         `json:"-"`
	Scheme     string         `json:"scheme"`
	Values     []assign.Entry `json:"values"`
}

// Open opens or creates a store in dir, recovering it if corrupted.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}

	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *leveldb.DB) (*Store, error) {
	s := &Store{m: &sync.Mutex{}, db: db}
	return s, s.checkVersion()
}

// Save records every entry of a under its experiment and unit, replacing any
// previous record.
func (s *Store) Save(unit string, a assign.Assignment) error {
	key, err := recordKey(a.ExperimentID(), unit)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Record{
		Scheme: a.Scheme().Name(),
		Values: a.Entries(),
	})
	if err != nil {
		return err
	}

	defer s.m.Unlock()
	s.m.Lock()
	return s.db.Put(key, data, nil)
}

func (s *Store) Load(experiment, unit string) (Record, error) {
	key, err := recordKey(experiment, unit)
	if err != nil {
		return Record{}, err
	}

	s.m.Lock()
	data, err := s.db.Get(key, nil)
	s.m.Unlock()

	if err == leveldb.ErrNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(key, data)
}

// Records returns the records of experiment in key order, or every record
// when experiment is "".
func (s *Store) Records(experiment string) ([]Record, error) {
	prefix := []byte(recordPrefix)
	if experiment != "" {
		prefix = append(prefix, experiment+"\x00"...)
	}

	defer s.m.Unlock()
	s.m.Lock()

	var out []Record
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		// Iterator buffers are only valid until the next call
		key := append([]byte(nil), it.Key()...)
		r, err := decodeRecord(key, it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, it.Error()
}

/*
Clean removes every record of experiment whose unit is not in keep, then
compacts the database. Should only be called when necessary.
*/
func (s *Store) Clean(experiment string, keep []string) (int, error) {
	if experiment == "" {
		return 0, fmt.Errorf("%w: empty experiment", ErrBadKey)
	}
	live := make(map[string]struct{}, len(keep))
	for _, u := range keep {
		live[u] = struct{}{}
	}

	defer s.m.Unlock()
	s.m.Lock()

	prefix := []byte(recordPrefix + experiment + "\x00")
	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	for it.Next() {
		unit := string(it.Key()[len(prefix):])
		if _, ok := live[unit]; !ok {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, err
	}

	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return batch.Len(), s.db.CompactRange(util.Range{})
}

func (s *Store) Close() error {
	defer s.m.Unlock()
	s.m.Lock()

	// Closing a leveldb instance multiple times is not an error
	return s.db.Close()
}

const storeVersion = 1

var versionProp = []byte("p:version")

func (s *Store) checkVersion() error {
	data, err := s.db.Get(versionProp, nil)
	if err == leveldb.ErrNotFound {
		buf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutVarint(buf, storeVersion)
		return s.db.Put(versionProp, buf[:n], nil)
	}
	if err != nil {
		return err
	}

	v, n := binary.Varint(data)
	if n <= 0 || v != storeVersion {
		return ErrBadVersion
	}
	return nil
}

const recordPrefix = "r:"

func recordKey(experiment, unit string) ([]byte, error) {
	if strings.IndexByte(experiment, 0) >= 0 || strings.IndexByte(unit, 0) >= 0 {
		return nil, ErrBadKey
	}
	return []byte(recordPrefix + experiment + "\x00" + unit), nil
}

func splitKey(key []byte) (string, string) {
	rest := bytes.TrimPrefix(key, []byte(recordPrefix))
	exp, unit, _ := bytes.Cut(rest, []byte{0})
	return string(exp), string(unit)
}

func decodeRecord(key, data []byte) (Record, error) {
	var r Record
	d := json.NewDecoder(bytes.NewReader(data))
	// Keeps integers and floats apart when re-encoding for comparison
	d.UseNumber()
	if err := d.Decode(&r); err != nil {
		return Record{}, err
	}
	r.Experiment, r.Unit = splitKey(key)
	return r, nil
}

// Matches reports whether a holds exactly the recorded scheme and values, in
// the recorded order.
func (r Record) Matches(a assign.Assignment) (bool, error) {
	if r.Scheme != a.Scheme().Name() {
		return false, nil
	}
	want, err := json.Marshal(r.Values)
	if err != nil {
		return false, err
	}
	got, err := json.Marshal(a.Entries())
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}
