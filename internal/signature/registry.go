// Package signature implements the process-wide Signature Registry (C3):
// a canonicalizer that maps structural FunctionType equality onto dense,
// stable integer ids so indirect-call type checks become O(1) id
// comparisons instead of structural comparisons.
package signature

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wafoundation/wasmer/api"
)

// ID is a dense small integer identifying a structural function type.
// Equality of IDs implies, and is implied by, structural equality of the
// signatures they were registered from.
type ID uint32

type entry struct {
	sig      api.FunctionType
	refcount uint32
}

// Registry is a bidirectional, refcounted signature table. It is safe for
// concurrent use: register/lookup/release are internally synchronized with
// a single mutex, which is adequate since signature churn is compile-time,
// not call-time.
type Registry struct {
	mu       sync.Mutex
	byKey    map[string]ID
	byID     []*entry // index-correlated with ID; nil once fully released and retired.
	log      logrus.FieldLogger
}

// NewRegistry constructs an empty Registry. log may be nil, in which case
// logrus.StandardLogger() is used, matching the rest of the runtime's
// logger-injection convention.
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		byKey: make(map[string]ID),
		log:   log,
	}
}

// Register interns sig, returning its dense id. If an id is already
// registered for a structurally equal signature, its refcount is bumped and
// the existing id is returned; otherwise a new id is allocated as
// len(byID). byID only ever grows (a retired slot is set to nil, not
// removed), so an id is never reused within the Registry's lifetime, which
// keeps id equality a safe proxy for structural equality for any holder —
// including one that still holds an id after it was retired (see Release).
func (r *Registry) Register(sig api.FunctionType) ID {
	key := sig.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		r.byID[id].refcount++
		return id
	}

	id := ID(len(r.byID))
	r.byID = append(r.byID, &entry{sig: sig, refcount: 1})
	r.byKey[key] = id
	r.log.WithFields(logrus.Fields{"id": id, "sig": sig.String()}).Debug("signature registered")
	return id
}

// Lookup returns the FunctionType for id, or false if id was never
// registered or has been fully retired.
func (r *Registry) Lookup(id ID) (api.FunctionType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.byID) || r.byID[id] == nil {
		return api.FunctionType{}, false
	}
	return r.byID[id].sig, true
}

// Release decrements id's refcount. Per spec.md §4.1, an implementation may
// retire an id once its refcount hits zero, or may simply never reuse ids
// (an intern pool) to keep outstanding id comparisons safe. This Registry
// does both: at zero the signature is removed from byKey and its byID slot
// is set to nil, so Lookup reports it as not found and a later Register of
// the same signature gets a fresh id; the slot itself is never handed out
// again, so an id captured before this call never aliases a different
// signature later.
func (r *Registry) Release(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.byID) || r.byID[id] == nil {
		return
	}
	e := r.byID[id]
	e.refcount--
	if e.refcount == 0 {
		delete(r.byKey, e.sig.Key())
		r.byID[id] = nil
		r.log.WithField("id", id).Debug("signature retired")
	}
}

// Equal reports whether two ids denote structurally equal signatures. This
// is exactly the check a checked-anyfunc call site performs (spec.md §3).
func Equal(a, b ID) bool { return a == b }
