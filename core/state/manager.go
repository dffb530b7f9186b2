package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"epochpay/core/types"
	"epochpay/storage"
)

var (
	accountPrefix = []byte("acct/")
	kvPrefix      = []byte("kv/")
)

// ErrTransferBlocked marks a push transfer rejected by the recipient account.
var ErrTransferBlocked = errors.New("state: recipient account is frozen")

// Manager mediates all reads and writes against the underlying key-value
// store. Values are RLP encoded; big integers travel as decimal strings inside
// stored mirror structs to keep the encoding canonical.
type Manager struct {
	db     storage.Database
	events []*types.Event
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedAccount struct {
	Balance string
	Frozen  bool
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

func kvKey(key []byte) []byte {
	buf := make([]byte, len(kvPrefix)+len(key))
	copy(buf, kvPrefix)
	copy(buf[len(kvPrefix):], key)
	return buf
}

// GetAccount loads the account for the address, returning a zeroed account
// when none is stored yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	key := accountKey(addr)
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(stored.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupt balance for account %x", addr)
	}
	return &types.Account{Balance: balance, Frozen: stored.Frozen}, nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: account must not be nil")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Balance: balance.String(), Frozen: account.Frozen})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// Credit pushes amount onto the recipient's balance. Frozen recipients reject
// the transfer; the caller decides whether that is fatal.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("state: credit amount must be positive")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if account.Frozen {
		return ErrTransferBlocked
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// SetFrozen toggles the frozen flag on an account.
func (m *Manager) SetFrozen(addr [20]byte, frozen bool) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Frozen = frozen
	return m.PutAccount(addr, account)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	ok, err := m.db.Has(hashed)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	data, err := m.db.Get(hashed)
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// AppendEvent buffers an event emitted during the current call.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt.Copy())
}

// DrainEvents returns the buffered events and resets the buffer.
func (m *Manager) DrainEvents() []*types.Event {
	drained := m.events
	m.events = nil
	return drained
}
