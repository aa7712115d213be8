package relation

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/obsstack/lokiop/pkg/databag"
)

var (
	// Bucket names
	bucketRelations = []byte("relations")
	bucketDatabags  = []byte("databags")
)

// relationMeta is the persisted identity of a relation.
type relationMeta struct {
	ID        int    `json:"id"`
	Endpoint  string `json:"endpoint"`
	RemoteApp string `json:"remote_app"`
}

// BoltStore is a Transport backed by BoltDB. It is the hosting agent's
// durable view of the exchange: incoming remote data is recorded with
// SetRemoteAppBag before the corresponding trigger is dispatched, and
// locally published databags survive process restarts.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the relation store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "lokiop.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRelations, bucketDatabags} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// EnsureRelation records a relation's identity. Called by the agent on the
// relation-created notification, and again once the remote application
// name resolves.
func (s *BoltStore) EnsureRelation(id int, endpoint, remoteApp string) error {
	meta := relationMeta{ID: id, Endpoint: endpoint, RemoteApp: remoteApp}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal relation meta: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelations).Put([]byte(endpoint), data)
	})
}

// RemoveRelation drops a relation and all its databags. Called by the
// agent on the relation-broken notification.
func (s *BoltStore) RemoveRelation(endpoint string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		relations := tx.Bucket(bucketRelations)
		raw := relations.Get([]byte(endpoint))
		if raw == nil {
			return nil
		}
		var meta relationMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("failed to unmarshal relation meta: %w", err)
		}

		databags := tx.Bucket(bucketDatabags)
		for _, p := range []Participant{LocalUnit, LocalApp, RemoteApp} {
			if err := databags.Delete(bagKey(meta.ID, p)); err != nil {
				return err
			}
		}
		return relations.Delete([]byte(endpoint))
	})
}

// SetRemoteAppBag records incoming coordinator data. Called by the agent
// before it delivers the relation-changed trigger.
func (s *BoltStore) SetRemoteAppBag(endpoint string, bag databag.Bag) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRelations).Get([]byte(endpoint))
		if raw == nil {
			return fmt.Errorf("no relation on endpoint %q", endpoint)
		}
		var meta relationMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("failed to unmarshal relation meta: %w", err)
		}
		return putBag(tx, meta.ID, RemoteApp, bag)
	})
}

// Relation implements Transport.
func (s *BoltStore) Relation(endpoint string) (*Relation, bool) {
	var rel *Relation
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRelations).Get([]byte(endpoint))
		if raw == nil {
			return nil
		}
		var meta relationMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("failed to unmarshal relation meta: %w", err)
		}

		rel = &Relation{ID: meta.ID, Endpoint: endpoint, RemoteApp: meta.RemoteApp}
		if meta.RemoteApp == "" {
			// Identity unresolved, treat data as absent.
			return nil
		}
		rel.Data = make(map[Participant]databag.Bag, 3)
		for _, p := range []Participant{LocalUnit, LocalApp, RemoteApp} {
			bag, err := getBag(tx, meta.ID, p)
			if err != nil {
				return err
			}
			rel.Data[p] = bag
		}
		return nil
	})
	if err != nil || rel == nil {
		return nil, false
	}
	return rel, true
}

// Write implements Transport.
func (s *BoltStore) Write(relationID int, p Participant, bag databag.Bag) error {
	if p == RemoteApp {
		return ErrReadOnly
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putBag(tx, relationID, p, bag)
	})
}

func bagKey(relationID int, p Participant) []byte {
	return []byte(fmt.Sprintf("%d/%s", relationID, p))
}

func putBag(tx *bolt.Tx, relationID int, p Participant, bag databag.Bag) error {
	data, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("failed to marshal databag: %w", err)
	}
	return tx.Bucket(bucketDatabags).Put(bagKey(relationID, p), data)
}

func getBag(tx *bolt.Tx, relationID int, p Participant) (databag.Bag, error) {
	raw := tx.Bucket(bucketDatabags).Get(bagKey(relationID, p))
	if raw == nil {
		return databag.Bag{}, nil
	}
	var bag databag.Bag
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil, fmt.Errorf("failed to unmarshal databag: %w", err)
	}
	return bag, nil
}
