package profile

import (
	"context"
	"log"

	"golang.org/x/oauth2"

	"github.com/nhle/task-suite/internal/graph"
	"github.com/nhle/task-suite/internal/model"
)

// DefaultImage is stored when the user's photo cannot be retrieved.
const DefaultImage = "assets/default-avatar.png"

// ProfileScope is the scope requested for the directory calls.
const ProfileScope = "User.Read"

// AccountSource is the part of the identity adapter Populate needs.
type AccountSource interface {
	CurrentAccount() (model.Account, bool)
	AcquireTokenSilent(ctx context.Context, scopes []string) (*oauth2.Token, error)
}

// Directory fetches the user's entry and photo.
type Directory interface {
	Me(ctx context.Context, tok *oauth2.Token) (graph.Me, error)
	Photo(ctx context.Context, tok *oauth2.Token) (string, error)
}

// Step names a stage of Populate.
type Step int

const (
	StepAccount Step = iota
	StepToken
	StepName
	StepPhoto
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepAccount:
		return "account"
	case StepToken:
		return "token"
	case StepName:
		return "name"
	case StepPhoto:
		return "photo"
	default:
		return "done"
	}
}

// Result reports how far Populate got. Stopped is the step that ended the
// run (StepDone on full success); Err is its cause, if any.
type Result struct {
	Stopped       Step
	Err           error
	PhotoFallback bool
}

// Populate fills store from the current account. It never fails loudly:
// problems are logged and the store keeps whatever was set before the
// failing step. A missing photo stores DefaultImage.
func Populate(ctx context.Context, ids AccountSource, dir Directory, store *Store) Result {
	if _, ok := ids.CurrentAccount(); !ok {
		return Result{Stopped: StepAccount}
	}

	tok, err := ids.AcquireTokenSilent(ctx, []string{ProfileScope})
	if err != nil {
		log.Printf("profile: acquiring token: %v", err)
		return Result{Stopped: StepToken, Err: err}
	}

	me, err := dir.Me(ctx, tok)
	if err != nil {
		log.Printf("profile: fetching user: %v", err)
		return Result{Stopped: StepName, Err: err}
	}
	store.SetName(me.UserPrincipalName)

	image, err := dir.Photo(ctx, tok)
	if err != nil {
		log.Printf("profile: fetching photo, using default: %v", err)
		store.SetImage(DefaultImage)
		return Result{Stopped: StepDone, PhotoFallback: true}
	}
	store.SetImage(image)

	return Result{Stopped: StepDone}
}
