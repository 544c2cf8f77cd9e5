package directory

import (
	"bytes"
	"context"
	"net"
	"strconv"

	"github.com/ugorji/go/codec"
)

// Record binds a public key to the address its node listens on.
type Record struct {
	PublicKey string `json:"public_key"`
	Host      string `json:"host"`
	Port      uint16 `json:"port"`
}

// NewRecord parses a host:port address into a Record.
func NewRecord(key string, addr string) (Record, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return Record{}, err
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return Record{}, err
	}
	return Record{PublicKey: key, Host: host, Port: uint16(port)}, nil
}

// Addr returns the host:port form of the record.
func (r Record) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// Marshal encodes the record with a JSON handle.
func (r *Record) Marshal() ([]byte, error) {
	var b bytes.Buffer

	jh := new(codec.JsonHandle)

	enc := codec.NewEncoder(&b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a record produced by Marshal.
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)

	jh := new(codec.JsonHandle)

	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}

// Directory resolves a public key to a Record. A miss is reported with a
// common.StoreErr of type KeyNotFound.
type Directory interface {
	Lookup(ctx context.Context, key string) (Record, error)
}

// Registrar accepts announcements of node addresses.
type Registrar interface {
	Announce(ctx context.Context, rec Record) error
}

// Store is a Directory that can be written to and enumerated.
type Store interface {
	Directory
	Registrar
	List(ctx context.Context) ([]Record, error)
}
