package wallet

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type shareKey struct {
	walletId int
	userId   int
}

type RepositoryStub struct {
	mu      sync.Mutex
	nextId  int
	wallets map[int]Wallet
	shares  map[shareKey]Permission
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		wallets: map[int]Wallet{},
		shares:  map[shareKey]Permission{},
	}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := make(map[int]Wallet, len(s.wallets))
	for k, v := range s.wallets {
		wallets[k] = v
	}
	shares := make(map[shareKey]Permission, len(s.shares))
	for k, v := range s.shares {
		shares[k] = v
	}
	nextId := s.nextId
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.wallets = wallets
		s.shares = shares
		s.nextId = nextId
	}
}

func (s *RepositoryStub) Store(ctx context.Context, userId int, wallet Wallet) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	wallet.Id = s.nextId
	wallet.UserId = userId
	s.wallets[wallet.Id] = wallet
	return wallet, nil
}

func (s *RepositoryStub) Get(ctx context.Context, id int) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

// GetForUpdate relies on the stub transaction manager serializing units of work.
func (s *RepositoryStub) GetForUpdate(ctx context.Context, id int) (Wallet, error) {
	return s.Get(ctx, id)
}

func (s *RepositoryStub) ListAccessible(ctx context.Context, userId int) ([]Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wallets []Wallet
	for _, wallet := range s.wallets {
		if wallet.UserId == userId || s.shares[shareKey{wallet.Id, userId}] != NoPermission {
			wallets = append(wallets, wallet)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Id < wallets[j].Id })
	return wallets, nil
}

func (s *RepositoryStub) CountOwned(ctx context.Context, userId int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, wallet := range s.wallets {
		if wallet.UserId == userId {
			count++
		}
	}
	return count, nil
}

func (s *RepositoryStub) ApplyDelta(ctx context.Context, id int, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return decimal.Zero, ErrWalletNotFound
	}
	wallet.Balance = wallet.Balance.Add(delta)
	s.wallets[id] = wallet
	return wallet.Balance, nil
}

func (s *RepositoryStub) SetDefault(ctx context.Context, userId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.wallets[id]
	if !ok || target.UserId != userId {
		return false, nil
	}
	for walletId, wallet := range s.wallets {
		if wallet.UserId == userId {
			wallet.IsDefault = walletId == id
			s.wallets[walletId] = wallet
		}
	}
	return true, nil
}

func (s *RepositoryStub) GetPermission(ctx context.Context, id int, userId int) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return NoPermission, ErrWalletNotFound
	}
	if wallet.UserId == userId {
		return Owner, nil
	}
	return s.shares[shareKey{id, userId}], nil
}

func (s *RepositoryStub) Share(ctx context.Context, id int, userId int, permission Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[shareKey{id, userId}] = permission
	return nil
}

// SetBalance seeds a balance directly, bypassing the ledger. Test fixtures only.
func (s *RepositoryStub) SetBalance(id int, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet := s.wallets[id]
	wallet.Balance = balance
	s.wallets[id] = wallet
}
