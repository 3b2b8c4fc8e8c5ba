package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/payments"
	"github.com/shelfkit/shelfkit/internal/repository/memstore"
	"github.com/shelfkit/shelfkit/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentNotice struct {
	Email       string
	ProductName string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (f *fakeNotifier) PurchaseAwaitingSignup(_ context.Context, email, productName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotice{Email: email, ProductName: productName})
	return nil
}

type fakePayees struct {
	created   []string
	createErr error
	accounts  map[string]*payments.Account
	links     []payments.AccountLinkParams
}

func newFakePayees() *fakePayees {
	return &fakePayees{accounts: make(map[string]*payments.Account)}
}

func (f *fakePayees) CreateAccount(_ context.Context, accountType, email string) (*payments.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	acct := &payments.Account{ID: "acct_" + email, Type: accountType, Email: email}
	f.accounts[acct.ID] = acct
	f.created = append(f.created, email)
	return acct, nil
}

func (f *fakePayees) GetAccount(_ context.Context, id string) (*payments.Account, error) {
	acct, ok := f.accounts[id]
	if !ok {
		return nil, &payments.Error{HTTPStatus: 404, Type: "invalid_request_error", Code: "resource_missing"}
	}
	return acct, nil
}

func (f *fakePayees) CreateAccountLink(_ context.Context, params payments.AccountLinkParams) (*payments.AccountLink, error) {
	f.links = append(f.links, params)
	return &payments.AccountLink{URL: "https://connect.example.com/setup/" + params.Account}, nil
}

var errBoom = errors.New("boom")

// seedProduct stores an owner account with a library and one active product.
func seedProduct(t *testing.T, store *memstore.Store) (*model.Account, *model.Product) {
	t.Helper()
	ctx := context.Background()

	owner := testutil.NewTestAccount(t)
	owner.PayeeID = "acct_owner"
	require.NoError(t, store.CreateAccount(ctx, owner))
	require.NoError(t, store.CreateLibrary(ctx, owner.ID))

	product := testutil.NewTestProduct(t, owner.ID)
	require.NoError(t, store.CreateProduct(ctx, product))
	return owner, product
}

// seedBuyer stores a registered buyer with an empty library.
func seedBuyer(t *testing.T, store *memstore.Store, customerID string) *model.Account {
	t.Helper()
	ctx := context.Background()

	buyer := testutil.NewTestAccount(t)
	buyer.CustomerID = customerID
	require.NoError(t, store.CreateAccount(ctx, buyer))
	require.NoError(t, store.CreateLibrary(ctx, buyer.ID))
	return buyer
}

func libraryIDs(t *testing.T, store *memstore.Store, accountID string) []string {
	t.Helper()
	products, err := store.ListLibraryProducts(context.Background(), accountID)
	require.NoError(t, err)
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
