package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"

	bolt "go.etcd.io/bbolt"
)

const (
	runsBucket     = "runs"
	leadsBucket    = "leads"
	metadataBucket = "metadata"
	lastRunKey     = "last_run"
)

var allBuckets = []string{runsBucket, leadsBucket, metadataBucket}

type storage struct {
	db     *bolt.DB
	config *common.StorageConfig
}

func NewStorage(config *common.StorageConfig) (interfaces.Storage, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &storage{
		db:     db,
		config: config,
	}, nil
}

func createBuckets(tx *bolt.Tx) error {
	for _, name := range allBuckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun stores or replaces a run and marks it as the most recent one.
func (s *storage) SaveRun(run *models.RunRecord) error {
	if run == nil || run.ID == "" {
		return common.NewValidationError("missing_run_id", "run record needs an ID")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
		}
		if err := tx.Bucket([]byte(runsBucket)).Put([]byte(run.ID), data); err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.ID, err)
		}
		return tx.Bucket([]byte(metadataBucket)).Put([]byte(lastRunKey), []byte(run.ID))
	})
}

func (s *storage) LoadRun(id string) (*models.RunRecord, error) {
	var run *models.RunRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if data == nil {
			return common.ErrRunNotFound
		}
		run = &models.RunRecord{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns returns every stored run, newest first.
func (s *storage) ListRuns() ([]*models.RunRecord, error) {
	runs := []*models.RunRecord{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var run models.RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return nil
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// GetLastRun returns the most recently saved run, or nil when nothing has run yet.
func (s *storage) GetLastRun() (*models.RunRecord, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket([]byte(metadataBucket)).Get([]byte(lastRunKey)))
		return nil
	})
	if err != nil || id == "" {
		return nil, err
	}

	run, err := s.LoadRun(id)
	if errors.Is(err, common.ErrRunNotFound) {
		return nil, nil
	}
	return run, err
}

// SaveLeads replaces the leads stored for runID.
func (s *storage) SaveLeads(runID string, leads []models.Lead) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(leadsBucket))
		prefix := leadPrefix(runID)

		var stale [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		for i, lead := range leads {
			lead.RunID = runID
			data, err := json.Marshal(lead)
			if err != nil {
				return fmt.Errorf("failed to marshal lead %d: %w", i, err)
			}
			key := append(append([]byte(nil), prefix...), []byte(fmt.Sprintf("%06d", i))...)
			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to save lead %d: %w", i, err)
			}
		}
		return nil
	})
}

// LoadLeads returns the leads of one run in the order they were saved.
func (s *storage) LoadLeads(runID string) ([]models.Lead, error) {
	leads := []models.Lead{}

	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := leadPrefix(runID)
		c := tx.Bucket([]byte(leadsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var lead models.Lead
			if err := json.Unmarshal(v, &lead); err != nil {
				continue
			}
			leads = append(leads, lead)
		}
		return nil
	})

	return leads, err
}

func (s *storage) LoadAllLeads() ([]models.Lead, error) {
	leads := []models.Lead{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(leadsBucket)).ForEach(func(_, v []byte) error {
			var lead models.Lead
			if err := json.Unmarshal(v, &lead); err != nil {
				return nil
			}
			leads = append(leads, lead)
			return nil
		})
	})

	return leads, err
}

func (s *storage) ClearAll() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		return createBuckets(tx)
	})
}

func leadPrefix(runID string) []byte {
	return []byte(runID + ":")
}
