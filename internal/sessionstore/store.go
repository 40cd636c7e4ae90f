package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepdeck/prepdeck/internal/models"
)

// Sentinel errors
var (
	// ErrNoSession is returned when no complete session is persisted.
	ErrNoSession = errors.New("no session")

	// ErrNoResetFlow is returned when the pending reset flow is incomplete.
	ErrNoResetFlow = errors.New("no pending reset flow")
)

// document is the on-disk shape of the store. One JSON file stands in for
// the browser's localStorage namespace; key names match the keys the web
// client persists.
type document struct {
	Version         int          `json:"version"`
	Token           string       `json:"token,omitempty"`
	User            *models.User `json:"user,omitempty"`
	SessionStart    int64        `json:"sessionStart,omitempty"`   // epoch millis
	LastActiveTime  int64        `json:"lastActiveTime,omitempty"` // epoch millis
	LastPage        string       `json:"lastPage,omitempty"`
	RememberedEmail string       `json:"rememberedEmail,omitempty"`
	RememberMe      bool         `json:"rememberMe,omitempty"`
	ResetEmail      string       `json:"resetEmail,omitempty"`
	ResetCode       string       `json:"resetCode,omitempty"`
}

// Store persists the session record and its companion keys on the local
// filesystem. All read-modify-write sequences hold the mutex end to end so
// two operations never interleave on the same keys.
type Store struct {
	mu      sync.Mutex
	baseDir string
}

// New creates a session store rooted at baseDir.
// If baseDir is empty, uses ~/.prepdeck/
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".prepdeck")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	if err := store.ensureDocument(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("session store initialized")

	return store, nil
}

// SaveSession atomically persists a full session record. Token and user are
// written together; a session is never half-populated.
func (s *Store) SaveSession(token string, user *models.User, now time.Time) error {
	if token == "" || user == nil {
		return fmt.Errorf("refusing to persist incomplete session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.Token = token
		doc.User = user.Clone()
		doc.SessionStart = now.UnixMilli()
		doc.LastActiveTime = now.UnixMilli()
	})
}

// LoadSession returns the persisted session record. A document holding a
// token without a user (or the reverse) violates the session invariant; the
// stray keys are scrubbed and ErrNoSession is returned.
func (s *Store) LoadSession() (*models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if doc.Token == "" && doc.User == nil {
		return nil, ErrNoSession
	}

	if doc.Token == "" || doc.User == nil {
		log.Warn().Msg("half-populated session found, scrubbing")
		if err := s.update(clearSessionKeys); err != nil {
			return nil, err
		}
		return nil, ErrNoSession
	}

	return &models.SessionRecord{
		Token:        doc.Token,
		User:         doc.User.Clone(),
		SessionStart: time.UnixMilli(doc.SessionStart),
		LastActive:   time.UnixMilli(doc.LastActiveTime),
	}, nil
}

// SaveUser overwrites the persisted user record, leaving the rest of the
// session untouched. Returns ErrNoSession when no session exists.
func (s *Store) SaveUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if doc.Token == "" || doc.User == nil {
		return ErrNoSession
	}

	return s.update(func(doc *document) {
		doc.User = user.Clone()
	})
}

// TouchActivity records a user-activity timestamp. The web client writes
// this on every activity event and on page unload; the CLI writes it on
// every command.
func (s *Store) TouchActivity(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.LastActiveTime = now.UnixMilli()
	})
}

// ClearSession removes every session-scoped key in one write: token, user,
// timestamps, last page and the pending reset flow. The remembered email
// and remember-me flag survive logout.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(clearSessionKeys)
}

func clearSessionKeys(doc *document) {
	doc.Token = ""
	doc.User = nil
	doc.SessionStart = 0
	doc.LastActiveTime = 0
	doc.LastPage = ""
	doc.ResetEmail = ""
	doc.ResetCode = ""
}

// SetRememberedEmail persists the login-form convenience value. An empty
// email clears it along with the remember-me flag.
func (s *Store) SetRememberedEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.RememberedEmail = email
		doc.RememberMe = email != ""
	})
}

// RememberedEmail returns the persisted convenience email, empty when the
// user did not opt in.
func (s *Store) RememberedEmail() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil || !doc.RememberMe {
		return "", false
	}
	return doc.RememberedEmail, doc.RememberedEmail != ""
}

// SetLastPage records the last visited path.
func (s *Store) SetLastPage(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.LastPage = path
	})
}

// LastPage returns the last visited path, empty when none was recorded.
func (s *Store) LastPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return ""
	}
	return doc.LastPage
}

// BeginResetFlow persists the email starting a password reset, discarding
// any code left over from an earlier attempt.
func (s *Store) BeginResetFlow(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.ResetEmail = email
		doc.ResetCode = ""
	})
}

// PendingResetEmail returns the email of a reset flow in progress, if any.
func (s *Store) PendingResetEmail() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false
	}
	return doc.ResetEmail, doc.ResetEmail != ""
}

// SetResetCode persists the verified reset code for the completion step.
func (s *Store) SetResetCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.ResetCode = code
	})
}

// ResetFlow returns the pending reset email and code. ErrNoResetFlow is
// returned unless both are present; the completion step may not run on a
// partial flow.
func (s *Store) ResetFlow() (email, code string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", "", err
	}
	if doc.ResetEmail == "" || doc.ResetCode == "" {
		return "", "", ErrNoResetFlow
	}
	return doc.ResetEmail, doc.ResetCode, nil
}

// ClearResetFlow removes both reset-flow keys.
func (s *Store) ClearResetFlow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) {
		doc.ResetEmail = ""
		doc.ResetCode = ""
	})
}

// ensureDocument creates an empty document if it doesn't exist.
func (s *Store) ensureDocument() error {
	path := filepath.Join(s.baseDir, "session.json")

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return s.save(&document{Version: 1})
}

// update applies fn to the current document and writes it back. Callers
// hold the mutex.
func (s *Store) update(fn func(*document)) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	fn(doc)
	return s.save(doc)
}

// load reads the document. Callers hold the mutex.
func (s *Store) load() (*document, error) {
	path := filepath.Join(s.baseDir, "session.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session document: %w", err)
	}

	return &doc, nil
}

// save writes the document atomically. Callers hold the mutex.
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session document: %w", err)
	}

	path := filepath.Join(s.baseDir, "session.json")
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session document: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session document: %w", err)
	}

	return nil
}
