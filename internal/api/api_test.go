package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/api"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/banking"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/storage"
)

type fakeDispatcher struct {
	dispatched []cbus.Command
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, cmd cbus.Command) (any, error) {
	f.dispatched = append(f.dispatched, cmd)
	if f.err != nil {
		return nil, f.err
	}

	return true, nil
}

type fakeStore struct {
	accounts  map[uuid.UUID]storage.Account
	transfers []storage.Transfer
	next      string
	err       error
}

func (f *fakeStore) Account(_ context.Context, id uuid.UUID) (storage.Account, error) {
	if f.err != nil {
		return storage.Account{}, f.err
	}

	a, ok := f.accounts[id]
	if !ok {
		return storage.Account{}, storage.ErrAccountNotFound
	}

	return a, nil
}

func (f *fakeStore) ListTransfersPaginated(_ context.Context, _ string, _ int) ([]storage.Transfer, string, error) {
	return f.transfers, f.next, f.err
}

func newServer(t *testing.T, d *fakeDispatcher, s *fakeStore) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(api.NewAPI(d, s, nil).Router())
	t.Cleanup(srv.Close)

	return srv
}

func postTransfer(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url+"/transfers", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestCreateTransfer_DispatchesCommand(t *testing.T) {
	d := &fakeDispatcher{}
	srv := newServer(t, d, &fakeStore{})

	from, to := uuid.New(), uuid.New()
	body := `{"from":"` + from.String() + `","to":"` + to.String() + `","amount":2500}`

	resp := postTransfer(t, srv.URL, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, d.dispatched, 1)
	cmd, ok := d.dispatched[0].(banking.CreateTransfer)
	require.True(t, ok)
	assert.Equal(t, from, cmd.From)
	assert.Equal(t, to, cmd.To)
	assert.Equal(t, int64(2500), cmd.Amount)
	assert.False(t, cmd.OccurredAt().IsZero())
}

func TestCreateTransfer_BadRequests(t *testing.T) {
	d := &fakeDispatcher{}
	srv := newServer(t, d, &fakeStore{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"bad from", `{"from":"nope","to":"` + uuid.NewString() + `","amount":1}`},
		{"bad to", `{"from":"` + uuid.NewString() + `","to":"nope","amount":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTransfer(t, srv.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	assert.Empty(t, d.dispatched)
}

func TestCreateTransfer_ErrorMapping(t *testing.T) {
	body := `{"from":"` + uuid.NewString() + `","to":"` + uuid.NewString() + `","amount":100}`

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transfer", banking.ErrInvalidTransfer, http.StatusBadRequest},
		{"missing account", storage.ErrAccountNotFound, http.StatusNotFound},
		{"insufficient funds", storage.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeDispatcher{err: tt.err}, &fakeStore{})

			resp := postTransfer(t, srv.URL, body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestGetAccount(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{accounts: map[uuid.UUID]storage.Account{
		id: {ID: id, Owner: "maria", Balance: 5000},
	}}
	srv := newServer(t, &fakeDispatcher{}, store)

	resp, err := http.Get(srv.URL + "/accounts/" + id.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var acct storage.Account
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acct))
	assert.Equal(t, "maria", acct.Owner)
	assert.Equal(t, int64(5000), acct.Balance)

	missing, err := http.Get(srv.URL + "/accounts/" + uuid.NewString())
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(srv.URL + "/accounts/nope")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestListTransfers(t *testing.T) {
	transfers := []storage.Transfer{
		{ID: uuid.New(), From: uuid.New(), To: uuid.New(), Amount: 100},
		{ID: uuid.New(), From: uuid.New(), To: uuid.New(), Amount: 200},
	}
	srv := newServer(t, &fakeDispatcher{}, &fakeStore{transfers: transfers, next: "cursor-1"})

	resp, err := http.Get(srv.URL + "/transfers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Data       []storage.Transfer `json:"data"`
		NextCursor string             `json:"next_cursor"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got.Data, 2)
	assert.Equal(t, "cursor-1", got.NextCursor)
}
