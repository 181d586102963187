package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"devsnippet/internal/policy"
)

// State is the signed-in snapshot handed to readers and subscribers.
type State struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Authenticated reports whether the snapshot carries a session.
func (s State) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// SessionStore persists the session between runs.
type SessionStore interface {
	Load() (State, error)
	Save(State) error
	Clear() error
}

// Session owns the signed-in state. Reads are snapshots; the state changes
// only after the server has answered one of the mutating calls below.
type Session struct {
	client *Client
	store  SessionStore

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewSession binds a session to c, restoring it from store when one is given.
func NewSession(c *Client, store SessionStore) (*Session, error) {
	s := &Session{client: c, store: store, subs: make(map[int]func(State))}
	if store == nil {
		return s, nil
	}

	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if st.Authenticated() {
		s.state = st
		c.SetToken(st.Token)
	}
	return s, nil
}

// Current returns a copy of the session state.
func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	return s.Current().Authenticated()
}

// CanModerate reports whether the signed-in user may manage users and any post.
func (s *Session) CanModerate() bool {
	return policy.CanModerate(s.identity())
}

// CanEditPost reports whether the signed-in user may edit or delete post.
func (s *Session) CanEditPost(post *Post) bool {
	return policy.CanEditPost(s.identity(), post)
}

func (s *Session) identity() policy.Identity {
	st := s.Current()
	if !st.Authenticated() {
		return policy.Identity{}
	}
	return policy.IdentityOf(st.User)
}

// Subscribe calls fn after every state change until the returned func is called.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Login signs in with email and password.
func (s *Session) Login(ctx context.Context, email, password string) (State, error) {
	res, err := s.client.Login(ctx, LoginInput{Email: email, Password: password})
	if err != nil {
		return s.Current(), err
	}
	return s.set(State{Token: res.Token, User: res.User})
}

// Register creates an account and signs in as it.
func (s *Session) Register(ctx context.Context, in RegisterInput) (State, error) {
	res, err := s.client.Register(ctx, in)
	if err != nil {
		return s.Current(), err
	}
	return s.set(State{Token: res.Token, User: res.User})
}

// Logout ends the session. Local state is cleared even if the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	if _, clearErr := s.set(State{}); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	return err
}

// Refresh reloads the user from the server. A rejected token clears the session.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	if !s.IsAuthenticated() {
		return State{}, nil
	}
	user, err := s.client.Me(ctx)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			st, clearErr := s.set(State{})
			return st, errors.Join(err, clearErr)
		}
		return s.Current(), err
	}
	return s.setUser(user)
}

// UpdateProfile changes the username and/or bio and adopts the server's answer.
func (s *Session) UpdateProfile(ctx context.Context, in UpdateProfileInput) (State, error) {
	user, err := s.client.UpdateProfile(ctx, in)
	if err != nil {
		return s.Current(), err
	}
	return s.setUser(user)
}

// UploadAvatar uploads an image and makes it the avatar.
func (s *Session) UploadAvatar(ctx context.Context, filename, contentType string, r io.Reader) (State, error) {
	asset, err := s.client.UploadMedia(ctx, filename, contentType, r)
	if err != nil {
		return s.Current(), err
	}
	user, err := s.client.SetAvatar(ctx, asset.URL, asset.PublicID)
	if err != nil {
		return s.Current(), err
	}
	return s.setUser(user)
}

func (s *Session) setUser(user *User) (State, error) {
	st := s.Current()
	st.User = user
	return s.set(st)
}

func (s *Session) set(st State) (State, error) {
	s.mu.Lock()
	s.state = st.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.client.SetToken(st.Token)

	var err error
	if s.store != nil {
		if st.Authenticated() {
			err = s.store.Save(st)
		} else {
			err = s.store.Clear()
		}
	}

	for _, fn := range subs {
		fn(st.clone())
	}
	return st.clone(), err
}

// FileStore keeps the session as JSON on disk.
type FileStore struct {
	Path string
}

// Load returns an empty state when the file does not exist.
func (f FileStore) Load() (State, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return st, nil
}

// Save writes the state readable by the owner only.
func (f FileStore) Save(st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, raw, 0o600)
}

// Clear removes the file.
func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
