package session

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
)

// BadgerStore persists session state in BadgerDB with msgpack-encoded
// values, so state survives gateway restarts.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// BadgerOptions configures the on-disk session store.
type BadgerOptions struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string

	// InMemory runs badger without disk persistence. Used in tests.
	InMemory bool
}

// NewBadgerStore opens a BadgerDB-backed session store.
func NewBadgerStore(opts BadgerOptions, logger zerolog.Logger) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("session: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func recordKey(sessionID string) []byte  { return []byte("session:" + sessionID + ":record") }
func emotionKey(sessionID string) []byte { return []byte("session:" + sessionID + ":emotion") }

func (b *BadgerStore) LoadRecord(_ context.Context, sessionID string) (Record, error) {
	var rec Record
	err := b.get(recordKey(sessionID), &rec)
	return rec, err
}

func (b *BadgerStore) SaveRecord(_ context.Context, sessionID string, rec Record) error {
	return b.set(recordKey(sessionID), rec)
}

func (b *BadgerStore) LoadEmotion(_ context.Context, sessionID string) (emotion.State, error) {
	var state emotion.State
	err := b.get(emotionKey(sessionID), &state)
	return state, err
}

func (b *BadgerStore) SaveEmotion(_ context.Context, sessionID string, state emotion.State) error {
	return b.set(emotionKey(sessionID), state)
}

func (b *BadgerStore) Delete(_ context.Context, sessionID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(recordKey(sessionID)); err != nil {
			return err
		}
		return txn.Delete(emotionKey(sessionID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) get(key []byte, out interface{}) error {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(val, out)
}

func (b *BadgerStore) set(key []byte, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// badgerLogger routes badger's log output through zerolog, dropping
// info and debug noise.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Error().Msgf("[badger] "+f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warn().Msgf("[badger] "+f, v...) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}
