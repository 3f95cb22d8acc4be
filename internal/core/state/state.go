// Package state persists launchpad run history using BoltDB.
// All writes are transactional; reads use read-only transactions.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/pkg/errs"
)

var bucketRuns = []byte("runs")

// DB wraps a BoltDB instance with typed accessor methods.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the state database at the given path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStateRead, "state.open").WithResource(path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucketRuns, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errs.Wrap(err, errs.ErrStateWrite, "state.init")
	}

	return &DB{bolt: db}, nil
}

// Close closes the underlying BoltDB file.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// PutRun upserts a run record. Called after every lifecycle transition.
func (db *DB) PutRun(rec v1.RunRecord) error {
	if rec.ID == "" {
		return errs.Newf(errs.ErrStateWrite, "state.put_run", "run record has no id")
	}
	if err := db.putJSON(bucketRuns, rec.ID, rec); err != nil {
		return errs.Wrap(err, errs.ErrStateWrite, "state.put_run").WithResource(rec.ID)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil, nil if not found.
func (db *DB) GetRun(id string) (*v1.RunRecord, error) {
	var rec v1.RunRecord
	found, err := db.getJSON(bucketRuns, id, &rec)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStateRead, "state.get_run").WithResource(id)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// ListRuns returns all runs, newest first. Pass an empty target to list every run.
func (db *DB) ListRuns(target string) ([]v1.RunRecord, error) {
	var recs []v1.RunRecord
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var r v1.RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal run %q: %w", k, err)
			}
			if target == "" || r.Target == target {
				recs = append(recs, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStateRead, "state.list_runs")
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Started.After(recs[j].Started)
	})
	return recs, nil
}

// DeleteRun removes a run record.
func (db *DB) DeleteRun(id string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Delete([]byte(id))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Generic helpers
// ─────────────────────────────────────────────────────────────────────────────

func (db *DB) putJSON(bucket []byte, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (db *DB) getJSON(bucket []byte, key string, out any) (bool, error) {
	var found bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}
