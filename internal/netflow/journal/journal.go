// Package journal keeps a local append-only archive of every raw log the
// subscription delivered, written before the finality gate. The pipeline
// drops not-yet-final transfers for good, so this is the only place an
// operator can see what was dropped.
package journal

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tecbot/gorocksdb"
)

type Journal struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions
}

func Open(path string) (*Journal, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}
	return &Journal{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: gorocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (j *Journal) Close() {
	if j.ro != nil {
		j.ro.Destroy()
	}
	if j.wo != nil {
		j.wo.Destroy()
	}
	if j.db != nil {
		j.db.Close()
	}
}

// Append stores the raw log JSON under its identity key. Re-appending the
// same log overwrites with identical content, so replays are harmless.
func (j *Journal) Append(lg types.Log) error {
	b, err := json.Marshal(lg)
	if err != nil {
		return err
	}
	return j.db.Put(j.wo, keyLog(lg), b)
}

// Get returns the raw log JSON for one identity, or nil if never observed.
func (j *Journal) Get(txHash string, logIndex uint64) ([]byte, error) {
	val, err := j.db.Get(j.ro, keyLogID(txHash, logIndex))
	if err != nil {
		return nil, err
	}
	defer val.Free()

	if !val.Exists() {
		return nil, nil
	}
	// val.Data() is RocksDB-owned memory, invalid after Free; copy out.
	b := append([]byte(nil), val.Data()...)
	return b, nil
}

func keyLog(lg types.Log) []byte {
	return keyLogID(lg.TxHash.Hex(), uint64(lg.Index))
}

func keyLogID(txHash string, logIndex uint64) []byte {
	return []byte(fmt.Sprintf("log:%s:%d", txHash, logIndex))
}
