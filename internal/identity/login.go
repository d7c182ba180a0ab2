package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/nhle/task-suite/internal/model"
)

const (
	// callbackTimeout bounds how long Login waits for the browser.
	callbackTimeout = 5 * time.Minute

	// exchangeTimeout bounds the code-for-token exchange.
	exchangeTimeout = 30 * time.Second
)

const callbackPage = `<html><body><h1>Signed in</h1><p>You may close this window and return to the terminal.</p></body></html>`

// Login runs the authorization code flow with PKCE. prompt receives the URL
// the user must open; Login then waits for the loopback callback, exchanges
// the code and caches the resulting token.
func (c *Client) Login(ctx context.Context, prompt func(authURL string)) (model.Account, error) {
	redirect, err := url.Parse(c.oauth.RedirectURL)
	if err != nil || redirect.Host == "" {
		return model.Account{}, fmt.Errorf("identity: invalid redirect url %q", c.oauth.RedirectURL)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return model.Account{}, fmt.Errorf("binding login callback on %s: %w", redirect.Host, err)
	}
	defer listener.Close()

	// A zero port picks a free one; the redirect must name the real port.
	if redirect.Port() == "0" {
		redirect.Host = listener.Addr().String()
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	conf := *c.oauth
	conf.RedirectURL = redirect.String()

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	r := mux.NewRouter()
	r.HandleFunc(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Sign-in failed: "+e, http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization denied: %s: %s", e, q.Get("error_description")))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			sendErr(errCh, errors.New("callback state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			sendErr(errCh, errors.New("no code in callback"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, callbackPage)
		select {
		case codeCh <- code:
		default:
		}
	}).Methods(http.MethodGet)

	server := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	prompt(authURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return model.Account{}, fmt.Errorf("logging in: %w", err)
	case <-time.After(callbackTimeout):
		return model.Account{}, errors.New("logging in: callback timed out")
	case <-ctx.Done():
		return model.Account{}, fmt.Errorf("logging in: %w", ctx.Err())
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := conf.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.Account{}, fmt.Errorf("exchanging code for token: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return model.Account{}, errors.New("logging in: token response has no id_token")
	}
	acct, err := accountFromIDToken(idToken)
	if err != nil {
		return model.Account{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.save(&cachedToken{Token: tok, IDToken: idToken}); err != nil {
		return model.Account{}, fmt.Errorf("saving token: %w", err)
	}

	log.Printf("identity: signed in as %s", acct.Username)
	return acct, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
