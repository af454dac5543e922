package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTemplates     = []byte("templates")
	bucketTemplateNames = []byte("template_names")
)

// BoltStore keeps templates in BoltDB, indexed by name
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database file at path
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltStore creates a template store on an open database
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTemplates); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketTemplateNames); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// DB returns the underlying database so other components can keep
// their buckets in the same file
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load implements Store
func (s *BoltStore) Load(ctx context.Context, name string) (*Template, error) {
	tmpl, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tmpl, nil
}

// Create stores a new template. The name must be unused.
func (s *BoltStore) Create(ctx context.Context, tmpl *Template) error {
	if tmpl.Name == "" {
		return fmt.Errorf("template name is required")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)
		names := tx.Bucket(bucketTemplateNames)

		if existing := names.Get([]byte(tmpl.Name)); existing != nil {
			return fmt.Errorf("%w: %q", ErrExists, tmpl.Name)
		}

		tmpl.ID = uuid.New().String()
		tmpl.Version = 1
		tmpl.Placeholders = Placeholders(tmpl.HTML)
		tmpl.CreatedAt = time.Now()
		tmpl.UpdatedAt = tmpl.CreatedAt

		if err := putTemplate(templates, tmpl); err != nil {
			return err
		}
		return names.Put([]byte(tmpl.Name), []byte(tmpl.ID))
	})
}

// Put creates the template or replaces the HTML of the one with the same name
func (s *BoltStore) Put(ctx context.Context, tmpl *Template) error {
	existing, err := s.GetByName(ctx, tmpl.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.Create(ctx, tmpl)
	}

	tmpl.ID = existing.ID
	if tmpl.Description == "" {
		tmpl.Description = existing.Description
	}
	return s.Update(ctx, tmpl)
}

// Get retrieves a template by ID, returning nil if absent
func (s *BoltStore) Get(ctx context.Context, id string) (*Template, error) {
	var tmpl *Template

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTemplates).Get([]byte(id))
		if data == nil {
			return nil
		}

		tmpl = &Template{}
		return json.Unmarshal(data, tmpl)
	})

	return tmpl, err
}

// GetByName retrieves a template by name, returning nil if absent
func (s *BoltStore) GetByName(ctx context.Context, name string) (*Template, error) {
	var tmpl *Template

	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketTemplateNames).Get([]byte(name))
		if id == nil {
			return nil
		}

		data := tx.Bucket(bucketTemplates).Get(id)
		if data == nil {
			return nil
		}

		tmpl = &Template{}
		return json.Unmarshal(data, tmpl)
	})

	return tmpl, err
}

// List returns templates with optional filtering
func (s *BoltStore) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	var templates []*Template

	err := s.db.View(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketTemplateNames)
		bucket := tx.Bucket(bucketTemplates)
		c := names.Cursor()

		skipped := 0
		search := strings.ToLower(filter.Search)

		// iterate the name index so results come back in name order
		for k, id := c.First(); k != nil; k, id = c.Next() {
			data := bucket.Get(id)
			if data == nil {
				continue
			}

			var tmpl Template
			if err := json.Unmarshal(data, &tmpl); err != nil {
				continue
			}

			if search != "" &&
				!strings.Contains(strings.ToLower(tmpl.Name), search) &&
				!strings.Contains(strings.ToLower(tmpl.Description), search) {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			templates = append(templates, &tmpl)

			if filter.Limit > 0 && len(templates) >= filter.Limit {
				break
			}
		}

		return nil
	})

	return templates, err
}

// Update replaces an existing template and bumps its version
func (s *BoltStore) Update(ctx context.Context, tmpl *Template) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)
		names := tx.Bucket(bucketTemplateNames)

		existingData := templates.Get([]byte(tmpl.ID))
		if existingData == nil {
			return fmt.Errorf("%w: id %s", ErrNotFound, tmpl.ID)
		}

		var existing Template
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}

		if existing.Name != tmpl.Name {
			if other := names.Get([]byte(tmpl.Name)); other != nil {
				return fmt.Errorf("%w: %q", ErrExists, tmpl.Name)
			}
			if err := names.Delete([]byte(existing.Name)); err != nil {
				return err
			}
			if err := names.Put([]byte(tmpl.Name), []byte(tmpl.ID)); err != nil {
				return err
			}
		}

		tmpl.Version = existing.Version + 1
		tmpl.Placeholders = Placeholders(tmpl.HTML)
		tmpl.CreatedAt = existing.CreatedAt
		tmpl.UpdatedAt = time.Now()

		return putTemplate(templates, tmpl)
	})
}

// DeleteByName removes the template with the given name. Missing names are not an error.
func (s *BoltStore) DeleteByName(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketTemplateNames)

		id := names.Get([]byte(name))
		if id == nil {
			return nil
		}
		// bolt slices are only valid inside the transaction
		id = append([]byte(nil), id...)

		if err := names.Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketTemplates).Delete(id)
	})
}

// Stats returns template statistics
func (s *BoltStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.View(func(tx *bolt.Tx) error {
		stats.Total = int64(tx.Bucket(bucketTemplates).Stats().KeyN)
		return nil
	})

	return stats, err
}

func putTemplate(b *bolt.Bucket, tmpl *Template) error {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	return b.Put([]byte(tmpl.ID), data)
}
