package auth

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/crack2116/fleettrack/internal/callbacks"
)

// State is the signed in identity of one session.
type State struct {
	mx     sync.RWMutex
	user   string
	cb     *callbacks.Callback[string]
	logger *slog.Logger
}

func NewState() *State {
	return &State{
		cb:     callbacks.New[string](),
		logger: slog.Default().With("logger", "auth"),
	}
}

func (s *State) CurrentUser() string {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.user
}

func (s *State) SignIn(user string) {
	s.set(user)
}

func (s *State) SignOut() {
	s.set("")
}

func (s *State) set(user string) {
	s.mx.Lock()
	if s.user == user {
		s.mx.Unlock()
		return
	}

	s.user = user
	s.mx.Unlock()

	if user == "" {
		s.logger.Debug("signed out")
	} else {
		s.logger.Debug("signed in", slog.String("user", user))
	}

	s.cb.AddMessage(user)
}

// OnChange calls fn with the current user now and after every change.
// The returned func removes fn.
func (s *State) OnChange(fn func(user string)) func() {
	name := uuid.NewString()

	s.cb.Subscribe(name, func(user string) bool {
		fn(user)
		return true
	})

	fn(s.CurrentUser())

	return func() {
		s.cb.Unsubscribe(name)
	}
}
