package directory

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mosaicnetworks/axolotl/src/common"
	"github.com/ugorji/go/codec"
)

const (
	// PeersFile is the name of the JSON file listing known nodes.
	PeersFile = "peers.json"
)

// JSONDirectory is a Store persisted in a JSON file. This allows human
// operators to manipulate the file. The file is read on every Lookup so that
// edits are picked up without restarting.
type JSONDirectory struct {
	l    sync.Mutex
	path string
}

// NewJSONDirectory creates a JSONDirectory backed by [base]/peers.json.
func NewJSONDirectory(base string) *JSONDirectory {
	return &JSONDirectory{
		path: filepath.Join(base, PeersFile),
	}
}

// Path returns the location of the JSON file.
func (j *JSONDirectory) Path() string {
	return j.path
}

func (j *JSONDirectory) read() ([]Record, error) {
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Check for no records
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var records []Record
	dec := codec.NewDecoderBytes(buf, new(codec.JsonHandle))
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}

	return records, nil
}

func (j *JSONDirectory) write(records []Record) error {
	jh := new(codec.JsonHandle)
	jh.Indent = 1

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, jh)
	if err := enc.Encode(records); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0600)
}

// Lookup implements the Directory interface.
func (j *JSONDirectory) Lookup(ctx context.Context, key string) (Record, error) {
	j.l.Lock()
	defer j.l.Unlock()

	records, err := j.read()
	if err != nil {
		return Record{}, err
	}

	for _, r := range records {
		if r.PublicKey == key {
			return r, nil
		}
	}

	return Record{}, common.NewStoreErr("Record", common.KeyNotFound, key)
}

// Announce implements the Registrar interface. It inserts or replaces the
// record of rec.PublicKey.
func (j *JSONDirectory) Announce(ctx context.Context, rec Record) error {
	if rec.PublicKey == "" {
		return common.NewStoreErr("Record", common.InvalidKey, rec.PublicKey)
	}

	j.l.Lock()
	defer j.l.Unlock()

	records, err := j.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].PublicKey == rec.PublicKey {
			records[i] = rec
			replaced = true
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	sort.Slice(records, func(a, b int) bool { return records[a].PublicKey < records[b].PublicKey })

	return j.write(records)
}

// List implements the Store interface.
func (j *JSONDirectory) List(ctx context.Context) ([]Record, error) {
	j.l.Lock()
	defer j.l.Unlock()

	return j.read()
}
