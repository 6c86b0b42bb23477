package wasmcore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StoreID identifies a Store for the sole purpose of rejecting cross-store
// operations (spec.md §7, §8): every Instance created through a Store
// carries that Store's ID, as does every root-package Function, Memory,
// Table and Global handle taken from such an Instance, and any operation
// that accepts two such objects must compare their IDs before touching
// either one.
type StoreID uint64

// Store is the arena that owns a family of Instances (spec.md §4.4
// "Instance" / "Store" boundary). It holds only its identity, a logger and
// the list of Instances created through it; Tunables and Resolver are passed
// in with each Instantiate call. A Store has no behavior of its own beyond
// bookkeeping and has no teardown method: it exists so an embedder can group
// a consistent set of running modules under one identity.
type Store struct {
	id StoreID

	mu        sync.Mutex
	instances []*Instance
	log       logrus.FieldLogger
}

// NewStore allocates a fresh Store with its own identity. log may be nil, in
// which case logrus.StandardLogger() is used.
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{id: StoreID(storeSeq()), log: log}
}

// storeSeq derives a StoreID from a random UUID's low 64 bits rather than a
// simple counter, so IDs stay unique across independently constructed
// engines in the same process (spec.md §7's cross-store check only needs
// inequality, not ordering).
func storeSeq() uint64 {
	u := uuid.New()
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(u[i])
	}
	return v
}

// ID returns this Store's identity.
func (s *Store) ID() StoreID { return s.id }

// own records inst as belonging to this Store and returns it, so that
// embedders constructing an Instance through Store.Instantiate get
// lifecycle tracking without wasmcore.Instantiate itself needing to know
// about Store.
func (s *Store) own(inst *Instance) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = append(s.instances, inst)
	return inst
}

// Instantiate runs Instantiate with args.StoreID forced to s.ID(), and
// tracks the resulting Instance for the lifetime of the Store.
func (s *Store) Instantiate(args InstantiationArgs) (*Instance, error) {
	args.StoreID = s.id
	inst, err := Instantiate(args)
	if err != nil {
		return nil, err
	}
	s.log.WithField("module", inst.Module.Name).Debug("instance created")
	return s.own(inst), nil
}

// Instances returns a snapshot of every Instance currently owned by s.
func (s *Store) Instances() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// CheckSameStore returns ErrCrossStore(op) if a and b were not created by
// the same Store.
func CheckSameStore(op string, a, b StoreID) error {
	if a != b {
		return ErrCrossStore(op)
	}
	return nil
}
