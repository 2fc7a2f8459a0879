package persistent

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	assign "github.com/awused/go-assign"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func newMemStore(t *testing.T) (*Store, *leveldb.DB) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := newStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return s, db
}

func newAssignment(t *testing.T, experiment, unit string, opts ...assign.Option) assign.Assignment {
	a := assign.New(experiment, opts...)
	verifyNilError(t, a.Set("color", assign.UniformChoice{
		Choices: []any{"red", "blue", "green"}, Unit: assign.Units{unit}}))
	verifyNilError(t, a.Set("price", assign.RandomFloat{Min: 1, Max: 10, Unit: assign.Units{unit}}))
	verifyNilError(t, a.Set("slots", assign.Sample{
		Choices: []any{1, 2, 3, 4}, Draws: 2, Unit: assign.Units{unit}}))
	verifyNilError(t, a.Set("enabled", false))
	return a
}

func TestSaveLoad(t *testing.T) {
	s, db := newMemStore(t)

	a := newAssignment(t, "exp", "u1")
	verifyNilError(t, s.Save("u1", a))

	has, err := db.Has([]byte("r:exp\x00u1"), nil)
	if !has || err != nil {
		t.Errorf("Unexpected values returned from has, got [%t, %v] expected "+
			"[%t, nil]", has, err, true)
	}

	r, err := s.Load("exp", "u1")
	verifyNilError(t, err)
	if r.Experiment != "exp" || r.Unit != "u1" || r.Scheme != "current" {
		t.Errorf("Unexpected record header %q %q %q", r.Experiment, r.Unit, r.Scheme)
	}
	if len(r.Values) != 4 || r.Values[0].Name != "color" || r.Values[3].Name != "enabled" {
		t.Errorf("Unexpected record values %v", r.Values)
	}

	ok, err := r.Matches(a)
	verifyNilError(t, err)
	if !ok {
		t.Error("A record did not match the assignment it was saved from")
	}

	_, err = s.Load("exp", "u2")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	verifyNilError(t, s.Close())
	// Closing twice is harmless
	verifyNilError(t, s.Close())
}

func TestMatchesDetectsDrift(t *testing.T) {
	s, _ := newMemStore(t)
	verifyNilError(t, s.Save("u1", newAssignment(t, "exp", "u1")))
	r, err := s.Load("exp", "u1")
	verifyNilError(t, err)

	cases := map[string]assign.Assignment{
		"scheme": newAssignment(t, "exp", "u1", assign.WithScheme(assign.Legacy)),
		"unit":   newAssignment(t, "exp", "u2"),
		"override": newAssignment(t, "exp", "u1",
			assign.WithOverrides(map[string]any{"enabled": true})),
	}
	for name, a := range cases {
		ok, err := r.Matches(a)
		verifyNilError(t, err)
		if ok {
			t.Errorf("%s: a changed assignment matched the record", name)
		}
	}

	// Order matters
	a := assign.New("exp")
	for _, e := range []int{3, 2, 1, 0} {
		verifyNilError(t, a.Set(r.Values[e].Name, 1))
	}
	if ok, _ := r.Matches(a); ok {
		t.Error("A reordered assignment matched the record")
	}
}

func TestRecords(t *testing.T) {
	s, _ := newMemStore(t)
	for _, exp := range []string{"a", "ab", "b"} {
		for _, u := range []string{"2", "1"} {
			verifyNilError(t, s.Save(u, newAssignment(t, exp, u)))
		}
	}

	rs, err := s.Records("a")
	verifyNilError(t, err)
	// "ab" shares a prefix with "a" but is a different experiment
	verifyRecords(t, rs, [][2]string{{"a", "1"}, {"a", "2"}})

	rs, err = s.Records("")
	verifyNilError(t, err)
	verifyRecords(t, rs, [][2]string{
		{"a", "1"}, {"a", "2"}, {"ab", "1"}, {"ab", "2"}, {"b", "1"}, {"b", "2"}})

	rs, err = s.Records("missing")
	verifyNilError(t, err)
	verifyRecords(t, rs, nil)
}

func TestClean(t *testing.T) {
	s, db := newMemStore(t)
	for _, u := range []string{"1", "2", "3"} {
		verifyNilError(t, s.Save(u, newAssignment(t, "exp", u)))
		verifyNilError(t, s.Save(u, newAssignment(t, "other", u)))
	}

	removed, err := s.Clean("exp", []string{"2", "4"})
	verifyNilError(t, err)
	if removed != 2 {
		t.Errorf("Expected 2 removed records, got %d", removed)
	}

	rs, err := s.Records("exp")
	verifyNilError(t, err)
	verifyRecords(t, rs, [][2]string{{"exp", "2"}})

	rs, err = s.Records("other")
	verifyNilError(t, err)
	if len(rs) != 3 {
		t.Errorf("Clean removed records of another experiment, %d left", len(rs))
	}

	if has, _ := db.Has(versionProp, nil); !has {
		t.Error("Clean removed the version property")
	}

	if _, err := s.Clean("", nil); !errors.Is(err, ErrBadKey) {
		t.Errorf("Expected ErrBadKey, got %v", err)
	}
}

func TestBadKeys(t *testing.T) {
	s, _ := newMemStore(t)
	if err := s.Save("u\x00", newAssignment(t, "exp", "u")); !errors.Is(err, ErrBadKey) {
		t.Errorf("Expected ErrBadKey, got %v", err)
	}
	if _, err := s.Load("e\x00xp", "u"); !errors.Is(err, ErrBadKey) {
		t.Errorf("Expected ErrBadKey, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = newStore(db)
	verifyNilError(t, err)
	// Reopening a store of the same version is fine
	_, err = newStore(db)
	verifyNilError(t, err)

	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, storeVersion+1)
	verifyNilError(t, db.Put(versionProp, buf[:n], nil))

	if _, err = newStore(db); !errors.Is(err, ErrBadVersion) {
		t.Errorf("Expected ErrBadVersion, got %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	verifyNilError(t, err)
	a := newAssignment(t, "exp", "u1")
	verifyNilError(t, s.Save("u1", a))
	verifyNilError(t, s.Close())

	s, err = Open(dir)
	verifyNilError(t, err)
	defer s.Close()
	r, err := s.Load("exp", "u1")
	verifyNilError(t, err)
	if ok, _ := r.Matches(a); !ok {
		t.Error("A record did not survive reopening the store")
	}
}

func verifyRecords(t *testing.T, rs []Record, expected [][2]string) {
	t.Helper()
	var got [][2]string
	for _, r := range rs {
		got = append(got, [2]string{r.Experiment, r.Unit})
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Unexpected records, got %v expected %v", got, expected)
	}
}

func verifyNilError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Error(err)
	}
}
