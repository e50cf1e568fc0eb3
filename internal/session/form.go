package session

import (
	"context"
	"errors"
	"sync"

	"lexdesk/internal/auth"
	"lexdesk/internal/model"
)

// ErrSubmissionInFlight is returned while a previous submit has not finished.
var ErrSubmissionInFlight = errors.New("submission already in flight")

// PersistMessage is shown when the token could not be stored locally.
const PersistMessage = "Could not save your session. Please try again."

// FormState is what the credentials form displays.
type FormState struct {
	Error   string `json:"error,omitempty"`
	Pending bool   `json:"pending"`
}

// Form is the state of one credentials form (login or register).
// It holds at most one error message: a failure replaces the previous message
// and a success clears it.
type Form struct {
	store *Store

	mu      sync.Mutex
	message string
	pending bool
}

// NewForm binds a form to the session store.
func NewForm(store *Store) *Form {
	return &Form{store: store}
}

// SubmitLogin runs a login through the store.
func (f *Form) SubmitLogin(ctx context.Context, req model.LoginRequest) error {
	return f.submit(func() error { return f.store.Login(ctx, req) })
}

// SubmitRegister runs a registration through the store.
func (f *Form) SubmitRegister(ctx context.Context, req model.RegisterRequest) error {
	return f.submit(func() error { return f.store.Register(ctx, req) })
}

func (f *Form) submit(run func() error) error {
	f.mu.Lock()
	if f.pending {
		f.mu.Unlock()
		return ErrSubmissionInFlight
	}
	f.pending = true
	f.mu.Unlock()

	err := run()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if err != nil {
		f.message = messageFor(err)
		return err
	}
	f.message = ""
	return nil
}

// State returns the current error message and pending flag.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FormState{Error: f.message, Pending: f.pending}
}

func messageFor(err error) string {
	if errors.Is(err, ErrPersist) {
		return PersistMessage
	}
	return auth.UserMessage(err)
}
