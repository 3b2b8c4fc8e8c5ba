// Package memstore is an in-memory repository.Store for unit tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/repository"
)

// Store keeps every table in maps guarded by one mutex.
// InTx snapshots state and restores it when fn fails.
type Store struct {
	mu    *sync.Mutex
	state *state

	// FailOn makes the named method return the given error. Keys are method
	// names such as "AddToLibrary".
	FailOn map[string]error
}

type state struct {
	accounts  map[string]model.Account
	products  map[string]model.Product
	libraries map[string]map[string]time.Time
	claims    map[string]model.PendingClaim
	apiKeys   map[string]model.APIKey
	seq       int64
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		state: &state{
			accounts:  make(map[string]model.Account),
			products:  make(map[string]model.Product),
			libraries: make(map[string]map[string]time.Time),
			claims:    make(map[string]model.PendingClaim),
			apiKeys:   make(map[string]model.APIKey),
		},
		FailOn: make(map[string]error),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:  make(map[string]model.Account, len(s.accounts)),
		products:  make(map[string]model.Product, len(s.products)),
		libraries: make(map[string]map[string]time.Time, len(s.libraries)),
		claims:    make(map[string]model.PendingClaim, len(s.claims)),
		apiKeys:   make(map[string]model.APIKey, len(s.apiKeys)),
		seq:       s.seq,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.libraries {
		lib := make(map[string]time.Time, len(v))
		for pid, at := range v {
			lib[pid] = at
		}
		c.libraries[k] = lib
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	for k, v := range s.apiKeys {
		c.apiKeys[k] = v
	}
	return c
}

func (s *Store) fail(method string) error {
	return s.FailOn[method]
}

// InTx runs fn and rolls back every write if it returns an error.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		*s.state = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ---- accounts ----

func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	if err := s.fail("CreateAccount"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.state.accounts {
		if a.Email == account.Email {
			return repository.ErrEmailExists
		}
		if a.Username == account.Username {
			return repository.ErrUsernameExists
		}
	}
	s.state.accounts[account.ID] = *account
	return nil
}

func (s *Store) findAccount(match func(model.Account) bool) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.state.accounts {
		if match(a) {
			a := a
			return &a, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	return s.findAccount(func(a model.Account) bool { return a.ID == id })
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	email = model.NormalizeEmail(email)
	return s.findAccount(func(a model.Account) bool { return a.Email == email })
}

func (s *Store) GetAccountByCustomerID(_ context.Context, customerID string) (*model.Account, error) {
	if customerID == "" {
		return nil, repository.ErrAccountNotFound
	}
	return s.findAccount(func(a model.Account) bool { return a.CustomerID == customerID })
}

func (s *Store) GetAccountByPayeeID(_ context.Context, payeeID string) (*model.Account, error) {
	if payeeID == "" {
		return nil, repository.ErrAccountNotFound
	}
	return s.findAccount(func(a model.Account) bool { return a.PayeeID == payeeID })
}

func (s *Store) SetAccountCustomerID(_ context.Context, accountID, customerID string) (bool, error) {
	if err := s.fail("SetAccountCustomerID"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.accounts[accountID]
	if !ok || a.CustomerID != "" {
		return false, nil
	}
	for _, other := range s.state.accounts {
		if other.CustomerID == customerID {
			return false, repository.ErrCustomerIDTaken
		}
	}
	a.CustomerID = customerID
	s.state.accounts[accountID] = a
	return true, nil
}

func (s *Store) SetAccountPayeeID(_ context.Context, accountID, payeeID string) (bool, error) {
	if err := s.fail("SetAccountPayeeID"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.accounts[accountID]
	if !ok || a.PayeeID != "" {
		return false, nil
	}
	a.PayeeID = payeeID
	s.state.accounts[accountID] = a
	return true, nil
}

func (s *Store) SetPayeeDetailsSubmitted(_ context.Context, payeeID string, submitted bool) (bool, error) {
	if err := s.fail("SetPayeeDetailsSubmitted"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for id, a := range s.state.accounts {
		if a.PayeeID == payeeID && payeeID != "" {
			a.PayeeDetailsSubmitted = submitted
			s.state.accounts[id] = a
			found = true
		}
	}
	return found, nil
}

// ---- products ----

func (s *Store) CreateProduct(_ context.Context, product *model.Product) error {
	if err := s.fail("CreateProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.state.products {
		if p.Slug == product.Slug {
			return repository.ErrSlugExists
		}
	}
	s.state.seq++
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Unix(s.state.seq, 0).UTC()
	}
	s.state.products[product.ID] = *product
	return nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) GetProductBySlug(_ context.Context, slug string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.products {
		if p.Slug == slug {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (s *Store) UpdateProduct(_ context.Context, product *model.Product) error {
	if err := s.fail("UpdateProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	for id, p := range s.state.products {
		if id != product.ID && p.Slug == product.Slug {
			return repository.ErrSlugExists
		}
	}
	s.state.products[product.ID] = *product
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(s.state.products, id)
	for _, lib := range s.state.libraries {
		delete(lib, id)
	}
	for cid, c := range s.state.claims {
		if c.ProductID == id {
			delete(s.state.claims, cid)
		}
	}
	return nil
}

func (s *Store) listProducts(match func(model.Product) bool) []*model.Product {
	out := make([]*model.Product, 0)
	for _, p := range s.state.products {
		if match(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) ListActiveProducts(_ context.Context, limit int) ([]*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.listProducts(func(p model.Product) bool { return p.Active })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListProductsByOwner(_ context.Context, ownerID string) ([]*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listProducts(func(p model.Product) bool { return p.OwnerID == ownerID }), nil
}

// ---- libraries ----

func (s *Store) CreateLibrary(_ context.Context, accountID string) error {
	if err := s.fail("CreateLibrary"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.libraries[accountID]; !ok {
		s.state.libraries[accountID] = make(map[string]time.Time)
	}
	return nil
}

func (s *Store) AddToLibrary(_ context.Context, accountID, productID string) (bool, error) {
	if err := s.fail("AddToLibrary"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.state.libraries[accountID]
	if !ok {
		return false, repository.ErrLibraryNotFound
	}
	if _, ok := s.state.products[productID]; !ok {
		return false, repository.ErrProductNotFound
	}
	if _, exists := lib[productID]; exists {
		return false, nil
	}
	s.state.seq++
	lib[productID] = time.Unix(s.state.seq, 0)
	return true, nil
}

func (s *Store) LibraryHasProduct(_ context.Context, accountID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.libraries[accountID][productID]
	return ok, nil
}

func (s *Store) ListLibraryProducts(_ context.Context, accountID string) ([]*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib := s.state.libraries[accountID]
	out := make([]*model.Product, 0, len(lib))
	for pid := range lib {
		if p, ok := s.state.products[pid]; ok {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lib[out[i].ID].After(lib[out[j].ID])
	})
	return out, nil
}

// ---- claims ----

func (s *Store) CreatePendingClaim(_ context.Context, claim *model.PendingClaim) error {
	if err := s.fail("CreatePendingClaim"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *claim
	c.Email = model.NormalizeEmail(c.Email)
	s.state.claims[c.ID] = c
	return nil
}

func (s *Store) ListOpenClaimsByEmail(_ context.Context, email string) ([]*model.PendingClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = model.NormalizeEmail(email)
	out := make([]*model.PendingClaim, 0)
	for _, c := range s.state.claims {
		if c.Email == email && !c.IsConsumed() {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ConsumeClaim(_ context.Context, claimID, accountID string, at time.Time) error {
	if err := s.fail("ConsumeClaim"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.state.claims[claimID]
	if !ok || c.IsConsumed() {
		return repository.ErrClaimNotFound
	}
	c.ConsumedAt = &at
	c.ConsumedBy = accountID
	s.state.claims[claimID] = c
	return nil
}

// Claims returns every claim, consumed or not.
func (s *Store) Claims() []model.PendingClaim {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PendingClaim, 0, len(s.state.claims))
	for _, c := range s.state.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- api keys ----

func (s *Store) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	if err := s.fail("CreateAPIKey"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.apiKeys[key.ID] = *key
	return nil
}

func (s *Store) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.APIKey
	for _, k := range s.state.apiKeys {
		if k.KeyPrefix == prefix && !k.IsRevoked() {
			k := k
			out = append(out, &k)
		}
	}
	return out, nil
}

func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.state.apiKeys[id]
	if !ok {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	s.state.apiKeys[id] = k
	return nil
}
