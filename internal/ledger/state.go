package ledger

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/decred/dcrd/container/lru"
)

const defaultCacheSize = 4096

// WorldState is the versioned key-value state shared by all invocations.
//
// Committed transactions first land in the pending block overlay, which is
// visible to subsequent transactions. CommitBlock flushes the overlay to the
// backend in one atomic batch and advances the app hash.
type WorldState struct {
	mu      sync.RWMutex
	backend Backend

	// cache holds recently read backend entries, including absent keys
	// (nil value, version 0).
	cache *lru.Map[string, VersionedValue]

	// pending holds the writes of transactions committed since the last
	// CommitBlock.
	pending map[string]VersionedValue

	seq     uint64
	height  int64
	appHash []byte
}

// NewWorldState wraps backend and restores the commit sequence, height and
// app hash recorded by the last flushed block.
func NewWorldState(backend Backend, cacheSize uint32) (*WorldState, error) {
	if cacheSize == 0 {
		cacheSize = defaultCacheSize
	}
	ws := &WorldState{
		backend: backend,
		cache:   lru.NewMap[string, VersionedValue](cacheSize),
		pending: make(map[string]VersionedValue),
	}

	seq, err := backend.Meta(metaSequence)
	if err != nil {
		return nil, err
	}
	height, err := backend.Meta(metaHeight)
	if err != nil {
		return nil, err
	}
	appHash, err := backend.Meta(metaAppHash)
	if err != nil {
		return nil, err
	}
	if len(seq) == 8 {
		ws.seq = binary.BigEndian.Uint64(seq)
	}
	if len(height) == 8 {
		ws.height = int64(binary.BigEndian.Uint64(height))
	}
	if len(appHash) > 0 {
		ws.appHash = appHash
	}

	log.Debugf("World state restored at height %d (sequence %d)", ws.height, ws.seq)
	return ws, nil
}

// Begin starts a transaction for the given invocation.
func (ws *WorldState) Begin(info TxInfo) *TxContext {
	return &TxContext{
		state:  ws,
		info:   info,
		reads:  make(map[string]uint64),
		writes: make(map[string][]byte),
	}
}

// BeginQuery starts a read-only transaction that only sees flushed blocks.
// Writes published since the last CommitBlock stay invisible to it, and it
// can never be committed.
func (ws *WorldState) BeginQuery(info TxInfo) *TxContext {
	tx := ws.Begin(info)
	tx.flushedOnly = true
	return tx
}

// read returns the current value and version for key. The caller must hold
// ws.mu (read or write).
func (ws *WorldState) read(key string) (VersionedValue, error) {
	if vv, ok := ws.pending[key]; ok {
		return vv, nil
	}
	return ws.readFlushed(key)
}

// readFlushed is read without the pending overlay.
func (ws *WorldState) readFlushed(key string) (VersionedValue, error) {
	if vv, ok := ws.cache.Get(key); ok {
		return vv, nil
	}
	stored, err := ws.backend.Get(key)
	if err != nil {
		return VersionedValue{}, err
	}
	var vv VersionedValue
	if stored != nil {
		vv = *stored
	}
	ws.cache.Put(key, vv)
	return vv, nil
}

// Get returns a copy of the value currently stored at key, or nil.
func (ws *WorldState) Get(key string) ([]byte, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	vv, err := ws.read(key)
	if err != nil {
		return nil, err
	}
	return cloneBytes(vv.Value), nil
}

// Version returns the version currently stored at key (0 when absent).
func (ws *WorldState) Version(key string) (uint64, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	vv, err := ws.read(key)
	return vv.Version, err
}

// Commit validates the transaction's read set and, when every key it read
// still has the version it observed, publishes its writes under a new
// commit sequence number. A stale read fails with ErrConflict and nothing
// is published. The transaction is closed either way.
func (ws *WorldState) Commit(tx *TxContext) error {
	if tx.closed {
		return makeError(ErrTxClosed, "transaction already closed")
	}
	tx.closed = true
	if tx.flushedOnly {
		return makeError(ErrReadOnly, "query transaction "+tx.info.ID+" cannot be committed")
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	for key, observed := range tx.reads {
		current, err := ws.read(key)
		if err != nil {
			return err
		}
		if current.Version != observed {
			str := fmt.Sprintf("transaction %s read stale key %q (version %d, now %d)",
				tx.info.ID, key, observed, current.Version)
			return makeError(ErrConflict, str)
		}
	}

	if len(tx.writes) == 0 {
		return nil
	}

	ws.seq++
	for key, value := range tx.writes {
		ws.pending[key] = VersionedValue{Value: value, Version: ws.seq}
	}
	log.Tracef("Committed tx %s: %d writes at sequence %d", tx.info.ID, len(tx.writes), ws.seq)
	return nil
}

// Discard closes the transaction without publishing anything.
func (ws *WorldState) Discard(tx *TxContext) {
	tx.closed = true
}

// CommitBlock flushes the pending overlay to the backend, records height and
// returns the new app hash. An empty block leaves the app hash unchanged.
func (ws *WorldState) CommitBlock(height int64) ([]byte, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	writes := make([]KV, 0, len(ws.pending))
	for key, vv := range ws.pending {
		writes = append(writes, KV{Key: key, Value: vv.Value, Version: vv.Version})
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Key < writes[j].Key })

	appHash := ws.appHash
	if len(writes) > 0 {
		h, err := nextAppHash(ws.appHash, height, writes)
		if err != nil {
			return nil, err
		}
		appHash = h
	}

	batch := &Batch{
		Writes: writes,
		Meta: map[string][]byte{
			metaSequence: uint64Bytes(ws.seq),
			metaHeight:   uint64Bytes(uint64(height)),
			metaAppHash:  appHash,
		},
	}
	if err := ws.backend.Apply(batch); err != nil {
		return nil, err
	}

	for _, kv := range writes {
		ws.cache.Put(kv.Key, VersionedValue{Value: kv.Value, Version: kv.Version})
	}
	ws.pending = make(map[string]VersionedValue)
	ws.height = height
	ws.appHash = appHash

	if len(writes) > 0 {
		log.Debugf("Flushed block %d: %d keys, app hash %x", height, len(writes), appHash)
	}
	return cloneBytes(appHash), nil
}

// Scan calls fn for every flushed key with prefix in ascending order. Writes
// that have not been flushed by CommitBlock are not visited.
func (ws *WorldState) Scan(prefix string, fn func(key string, value []byte) error) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	return ws.backend.Scan(prefix, func(key string, vv VersionedValue) error {
		return fn(key, cloneBytes(vv.Value))
	})
}

// Height returns the height of the last flushed block.
func (ws *WorldState) Height() int64 {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.height
}

// AppHash returns the app hash of the last flushed block.
func (ws *WorldState) AppHash() []byte {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return cloneBytes(ws.appHash)
}

// Close closes the backend. Unflushed writes are lost.
func (ws *WorldState) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.pending) > 0 {
		log.Warnf("Closing world state with %d unflushed keys", len(ws.pending))
	}
	return ws.backend.Close()
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
