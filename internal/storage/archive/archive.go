// Package archive keeps finished turn transcripts in a bbolt file.
package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/event"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTranscripts = []byte("transcripts")
	bucketLatest      = []byte("latest")
	keyLatest         = []byte("record")
)

// Store appends transcript records per conversation and mirrors the most recent one
// to a plain JSON file for quick inspection.
type Store struct {
	db         *bolt.DB
	mirrorPath string
}

func Open(path, mirrorPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTranscripts); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketLatest)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init archive buckets: %w", err)
	}
	return &Store{db: db, mirrorPath: mirrorPath}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores rec under its conversation, keyed by a per-conversation sequence.
func (s *Store) Save(ctx context.Context, rec event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		conv, err := tx.Bucket(bucketTranscripts).CreateBucketIfNotExists([]byte(rec.ConversationID))
		if err != nil {
			return err
		}
		seq, err := conv.NextSequence()
		if err != nil {
			return err
		}
		if err := conv.Put(itob(seq), blob); err != nil {
			return err
		}
		return tx.Bucket(bucketLatest).Put(keyLatest, blob)
	})
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	if s.mirrorPath != "" {
		if err := writeFileAtomic(s.mirrorPath, blob); err != nil {
			return fmt.Errorf("failed to mirror transcript: %w", err)
		}
	}
	return nil
}

// List returns every stored transcript of a conversation, oldest first.
func (s *Store) List(ctx context.Context, conversationID string) ([]event.Record, error) {
	out := []event.Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		conv := tx.Bucket(bucketTranscripts).Bucket([]byte(conversationID))
		if conv == nil {
			return fmt.Errorf("transcripts of %s: %w", conversationID, core.ErrNotFound)
		}
		return conv.ForEach(func(k, v []byte) error {
			var rec event.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt transcript %s/%d: %w", conversationID, binary.BigEndian.Uint64(k), err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (s *Store) Latest(ctx context.Context) (*event.Record, error) {
	var rec *event.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLatest).Get(keyLatest)
		if v == nil {
			return fmt.Errorf("latest transcript: %w", core.ErrNotFound)
		}
		rec = &event.Record{}
		return json.Unmarshal(v, rec)
	})
	return rec, err
}

// Delete drops all transcripts of a conversation. Missing is not an error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTranscripts)
		if b.Bucket([]byte(conversationID)) == nil {
			return nil
		}
		return b.DeleteBucket([]byte(conversationID))
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".transcript-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
