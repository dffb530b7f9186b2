package registry

import (
	"errors"
	"fmt"
	"math/big"
)

// Storage abstracts the subset of state manager functionality the registry
// needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Registry is a state-backed, enumerable holder set with per-holder weights
// and a minimum eligibility threshold. It satisfies the distribution engine's
// HolderRegistry contract: deterministic enumeration order, indexed lookup,
// weight and threshold queries. Two named instances back the points and
// balance categories.
type Registry struct {
	st   Storage
	name string
}

// New binds a named registry to the storage backend.
func New(st Storage, name string) *Registry {
	return &Registry{st: st, name: name}
}

// Name returns the registry's instance name.
func (r *Registry) Name() string { return r.name }

func (r *Registry) indexKey() []byte {
	return []byte("reg/" + r.name + "/index")
}

func (r *Registry) thresholdKey() []byte {
	return []byte("reg/" + r.name + "/threshold")
}

func (r *Registry) weightKey(holder [20]byte) []byte {
	prefix := "reg/" + r.name + "/weight/"
	buf := make([]byte, len(prefix)+len(holder))
	copy(buf, prefix)
	copy(buf[len(prefix):], holder[:])
	return buf
}

func (r *Registry) loadIndex() ([][20]byte, error) {
	var index [][20]byte
	if _, err := r.st.KVGet(r.indexKey(), &index); err != nil {
		return nil, err
	}
	return index, nil
}

// Count returns the number of enumerable holders.
func (r *Registry) Count() (uint64, error) {
	index, err := r.loadIndex()
	if err != nil {
		return 0, err
	}
	return uint64(len(index)), nil
}

// HolderAt returns the holder at the enumeration index.
func (r *Registry) HolderAt(i uint64) ([20]byte, error) {
	index, err := r.loadIndex()
	if err != nil {
		return [20]byte{}, err
	}
	if i >= uint64(len(index)) {
		return [20]byte{}, fmt.Errorf("registry %s: index %d out of range", r.name, i)
	}
	return index[i], nil
}

// WeightOf returns the holder's current weight, zero when unknown.
func (r *Registry) WeightOf(holder [20]byte) (*big.Int, error) {
	weight := new(big.Int)
	ok, err := r.st.KVGet(r.weightKey(holder), weight)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return weight, nil
}

// MinThreshold returns the minimum weight required for eligibility.
func (r *Registry) MinThreshold() (*big.Int, error) {
	threshold := new(big.Int)
	ok, err := r.st.KVGet(r.thresholdKey(), threshold)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return threshold, nil
}

// SetThreshold installs a new minimum eligibility weight.
func (r *Registry) SetThreshold(threshold *big.Int) error {
	if threshold == nil || threshold.Sign() < 0 {
		return errors.New("registry: threshold cannot be negative")
	}
	return r.st.KVPut(r.thresholdKey(), threshold)
}

// SetHolder installs or updates a holder's weight. New holders append to the
// enumeration order.
func (r *Registry) SetHolder(holder [20]byte, weight *big.Int) error {
	if weight == nil || weight.Sign() <= 0 {
		return errors.New("registry: weight must be positive")
	}
	known, err := r.st.KVGet(r.weightKey(holder), nil)
	if err != nil {
		return err
	}
	if !known {
		index, err := r.loadIndex()
		if err != nil {
			return err
		}
		index = append(index, holder)
		if err := r.st.KVPut(r.indexKey(), index); err != nil {
			return err
		}
	}
	return r.st.KVPut(r.weightKey(holder), weight)
}

// RemoveHolder drops a holder from the registry. The last holder is swapped
// into the vacated slot, so enumeration order changes only past the removal
// point.
func (r *Registry) RemoveHolder(holder [20]byte) error {
	index, err := r.loadIndex()
	if err != nil {
		return err
	}
	pos := -1
	for i, existing := range index {
		if existing == holder {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("registry %s: holder not found", r.name)
	}
	index[pos] = index[len(index)-1]
	index = index[:len(index)-1]
	if err := r.st.KVPut(r.indexKey(), index); err != nil {
		return err
	}
	return r.st.KVDelete(r.weightKey(holder))
}

// Holders returns the full enumeration, in order.
func (r *Registry) Holders() ([][20]byte, error) {
	return r.loadIndex()
}
