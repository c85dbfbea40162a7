package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// -----------------------------------------------------------------------------
// All keys in the leveldb backend start with a one byte key set prefix:
//
//	Key set   Value                                 Description
//	's'       <8 byte version><value bytes>         World state entries
//	'm'       <value bytes>                         Metadata
//
// Versions are serialized big endian.
// -----------------------------------------------------------------------------
const (
	keySetState = 's'
	keySetMeta  = 'm'

	versionLen = 8
)

func prefixedKey(set byte, key string) []byte {
	b := make([]byte, 1+len(key))
	b[0] = set
	copy(b[1:], key)
	return b
}

// levelDbBackend implements the Backend interface using an underlying leveldb
// database instance.
type levelDbBackend struct {
	// db is the database that contains the world state.  It is set when the
	// instance is created and is not changed afterward.
	db *leveldb.DB
}

// Ensure levelDbBackend implements the Backend interface.
var _ Backend = (*levelDbBackend)(nil)

// convertLdbErr converts the passed leveldb error into a ledger error with an
// equivalent error kind and the passed description.
func convertLdbErr(ldbErr error, desc string) error {
	kind := ErrBackend
	if ldberrors.IsCorrupted(ldbErr) {
		kind = ErrCorruption
	}
	return backendError(kind, desc, ldbErr)
}

// OpenLevelDB opens (or creates) a leveldb world state at dbPath.
func OpenLevelDB(dbPath string) (Backend, error) {
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nil, fmt.Errorf("create leveldb directory: %w", err)
	}

	log.Infof("Loading leveldb world state from '%s'", dbPath)
	opts := opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open world state database")
	}
	return &levelDbBackend{db: db}, nil
}

// OpenMemory returns a leveldb backend on in-memory storage. Nothing
// survives Close.
func OpenMemory() (Backend, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open in-memory world state")
	}
	return &levelDbBackend{db: db}, nil
}

func (l *levelDbBackend) Get(key string) (*VersionedValue, error) {
	serialized, err := l.db.Get(prefixedKey(keySetState, key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, convertLdbErr(err, fmt.Sprintf("failed to get key %q from leveldb", key))
	}
	return decodeVersioned(key, serialized)
}

func decodeVersioned(key string, serialized []byte) (*VersionedValue, error) {
	if len(serialized) < versionLen {
		str := fmt.Sprintf("world state entry %q is truncated (%d bytes)", key, len(serialized))
		return nil, makeError(ErrCorruption, str)
	}
	return &VersionedValue{
		Version: binary.BigEndian.Uint64(serialized[:versionLen]),
		Value:   serialized[versionLen:],
	}, nil
}

func (l *levelDbBackend) Meta(name string) ([]byte, error) {
	value, err := l.db.Get(prefixedKey(keySetMeta, name), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, convertLdbErr(err, fmt.Sprintf("failed to get meta %q", name))
	}
	return value, nil
}

// Apply writes the batch in a leveldb transaction.  Any error discards the
// transaction so no partial batch is ever visible.
func (l *levelDbBackend) Apply(batch *Batch) error {
	ldbTx, err := l.db.OpenTransaction()
	if err != nil {
		return convertLdbErr(err, "failed to open leveldb transaction")
	}

	for _, kv := range batch.Writes {
		serialized := make([]byte, versionLen+len(kv.Value))
		binary.BigEndian.PutUint64(serialized, kv.Version)
		copy(serialized[versionLen:], kv.Value)
		if err := ldbTx.Put(prefixedKey(keySetState, kv.Key), serialized, nil); err != nil {
			ldbTx.Discard()
			return convertLdbErr(err, fmt.Sprintf("failed to put key %q", kv.Key))
		}
	}
	for name, value := range batch.Meta {
		if err := ldbTx.Put(prefixedKey(keySetMeta, name), value, nil); err != nil {
			ldbTx.Discard()
			return convertLdbErr(err, fmt.Sprintf("failed to put meta %q", name))
		}
	}

	if err := ldbTx.Commit(); err != nil {
		ldbTx.Discard()
		return convertLdbErr(err, "failed to commit leveldb transaction")
	}
	return nil
}

func (l *levelDbBackend) Scan(prefix string, fn func(key string, vv VersionedValue) error) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefixedKey(keySetState, prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		key := string(iter.Key()[1:])
		// The iterator reuses its buffers, so copy before handing out.
		serialized := append([]byte(nil), iter.Value()...)
		vv, err := decodeVersioned(key, serialized)
		if err != nil {
			return err
		}
		if err := fn(key, *vv); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return convertLdbErr(err, "failed to iterate world state")
	}
	return nil
}

func (l *levelDbBackend) Close() error {
	return l.db.Close()
}
