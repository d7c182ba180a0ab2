package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/task-suite/internal/graph"
	"github.com/nhle/task-suite/internal/identity"
	"github.com/nhle/task-suite/internal/model"
)

type fakeIdentity struct {
	signedIn bool
	tokenErr error
	scopes   []string
}

func (f *fakeIdentity) CurrentAccount() (model.Account, bool) {
	return model.Account{Username: "bob@corp.example"}, f.signedIn
}

func (f *fakeIdentity) AcquireTokenSilent(_ context.Context, scopes []string) (*oauth2.Token, error) {
	f.scopes = scopes
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &oauth2.Token{AccessToken: "t"}, nil
}

type fakeDirectory struct {
	me       graph.Me
	meErr    error
	photo    string
	photoErr error
	meCalls  int
}

func (f *fakeDirectory) Me(context.Context, *oauth2.Token) (graph.Me, error) {
	f.meCalls++
	return f.me, f.meErr
}

func (f *fakeDirectory) Photo(context.Context, *oauth2.Token) (string, error) {
	return f.photo, f.photoErr
}

func TestStore_StartsEmpty(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestStore_SetAndSnapshot(t *testing.T) {
	s := NewStore()
	s.SetName("bob")
	snap := s.Snapshot()
	s.SetImage("data:image/png;base64,AA==")

	assert.Equal(t, model.Profile{Name: "bob"}, snap, "snapshots are copies")
	assert.Equal(t, model.Profile{Name: "bob", Image: "data:image/png;base64,AA=="}, s.Snapshot())

	s.Reset()
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestStore_SubscribeGetsLatest(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()

	s.SetName("a")
	s.SetName("b")
	s.SetImage("img")

	got := <-ch
	assert.Equal(t, model.Profile{Name: "b", Image: "img"}, got)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra value %+v", extra)
	default:
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.SetName("n") }()
		go func() { defer wg.Done(); _ = s.Snapshot() }()
	}
	wg.Wait()
	assert.Equal(t, "n", s.Snapshot().Name)
}

func TestPopulate_Success(t *testing.T) {
	ids := &fakeIdentity{signedIn: true}
	dir := &fakeDirectory{me: graph.Me{UserPrincipalName: "bob@corp.example"}, photo: "data:image/jpeg;base64,AA=="}
	s := NewStore()

	res := Populate(context.Background(), ids, dir, s)
	assert.Equal(t, StepDone, res.Stopped)
	assert.NoError(t, res.Err)
	assert.False(t, res.PhotoFallback)
	assert.Equal(t, []string{ProfileScope}, ids.scopes)
	assert.Equal(t, model.Profile{Name: "bob@corp.example", Image: "data:image/jpeg;base64,AA=="}, s.Snapshot())
}

func TestPopulate_NoAccountIsNoOp(t *testing.T) {
	dir := &fakeDirectory{}
	s := NewStore()

	res := Populate(context.Background(), &fakeIdentity{}, dir, s)
	assert.Equal(t, StepAccount, res.Stopped)
	assert.Zero(t, dir.meCalls)
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestPopulate_TokenFailureLeavesStore(t *testing.T) {
	ids := &fakeIdentity{signedIn: true, tokenErr: identity.ErrInteractionRequired}
	dir := &fakeDirectory{}
	s := NewStore()
	s.SetName("previous")

	res := Populate(context.Background(), ids, dir, s)
	assert.Equal(t, StepToken, res.Stopped)
	assert.ErrorIs(t, res.Err, identity.ErrInteractionRequired)
	assert.Zero(t, dir.meCalls)
	assert.Equal(t, "previous", s.Snapshot().Name)
}

func TestPopulate_NameFailureLeavesStore(t *testing.T) {
	dir := &fakeDirectory{meErr: errors.New("graph down")}
	s := NewStore()

	res := Populate(context.Background(), &fakeIdentity{signedIn: true}, dir, s)
	assert.Equal(t, StepName, res.Stopped)
	assert.Error(t, res.Err)
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestPopulate_PhotoFailureStoresDefault(t *testing.T) {
	dir := &fakeDirectory{
		me:       graph.Me{UserPrincipalName: "bob@corp.example"},
		photoErr: &graph.StatusError{Path: "/me/photo/$value", Status: 404},
	}
	s := NewStore()

	var res Result
	require.NotPanics(t, func() {
		res = Populate(context.Background(), &fakeIdentity{signedIn: true}, dir, s)
	})
	assert.Equal(t, StepDone, res.Stopped)
	assert.NoError(t, res.Err)
	assert.True(t, res.PhotoFallback)
	assert.Equal(t, model.Profile{Name: "bob@corp.example", Image: DefaultImage}, s.Snapshot())
}

func TestStep_String(t *testing.T) {
	assert.Equal(t, "photo", StepPhoto.String())
	assert.Equal(t, "done", StepDone.String())
}
