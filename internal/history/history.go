// internal/history/history.go
// Package history persists conversation turns as one JSONL file per session.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/acmecorp/hrdesk/internal/fault"
)

// Turn roles. They match the chat-completion message roles so history can
// be replayed into a prompt without translation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxLineSize bounds a single stored turn when scanning session files.
const maxLineSize = 1024 * 1024

// validSessionID constrains session identifiers to filename-safe tokens.
// UUIDs pass; path separators and dots do not.
var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Turn is a single utterance in a conversation.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SessionInfo summarizes one stored session for listings.
type SessionInfo struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes session transcripts under a single directory.
// Appends to the same session are serialized; different sessions do not
// block each other.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the sessions directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fault.Errorf(fault.KindValidation, "sessions directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("create sessions directory: %w", err))
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// ValidateSessionID reports whether the identifier is safe to use as a
// session file name.
func ValidateSessionID(id string) error {
	if !validSessionID.MatchString(id) {
		return fault.Errorf(fault.KindValidation, "invalid session id %q", id)
	}
	return nil
}

// Append adds turns to the end of a session transcript, creating it on
// first use.
func (s *Store) Append(sessionID string, turns ...Turn) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(s.sessionPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fault.Wrap(fault.KindIO, fmt.Errorf("open session %s: %w", sessionID, err))
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	for _, turn := range turns {
		if err := encoder.Encode(turn); err != nil {
			return fault.Wrap(fault.KindIO, fmt.Errorf("append to session %s: %w", sessionID, err))
		}
	}
	return nil
}

// Load returns all turns of a session in order. An unknown session loads
// as an empty transcript.
func (s *Store) Load(sessionID string) ([]Turn, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	file, err := os.Open(s.sessionPath(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("open session %s: %w", sessionID, err))
	}
	defer file.Close()

	var turns []Turn
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var turn Turn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			return nil, fault.Wrap(fault.KindIO, fmt.Errorf("parse session %s: %w", sessionID, err))
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("read session %s: %w", sessionID, err))
	}
	return turns, nil
}

// Exists reports whether a session transcript is on disk.
func (s *Store) Exists(sessionID string) (bool, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.sessionPath(sessionID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fault.Wrap(fault.KindIO, fmt.Errorf("stat session %s: %w", sessionID, err))
}

// List returns a summary of every stored session, newest first.
func (s *Store) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("read sessions directory: %w", err))
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(name, ".jsonl")
		if !validSessionID.MatchString(id) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fault.Wrap(fault.KindIO, fmt.Errorf("stat session %s: %w", id, err))
		}
		turns, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, SessionInfo{ID: id, Turns: len(turns), UpdatedAt: info.ModTime()})
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// Remove deletes a session transcript.
func (s *Store) Remove(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.sessionPath(sessionID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fault.Errorf(fault.KindNotFound, "session %s not found", sessionID)
		}
		return fault.Wrap(fault.KindIO, fmt.Errorf("remove session %s: %w", sessionID, err))
	}
	return nil
}

// Window returns the most recent n turns, preserving order. It is a pure
// helper so prompt assembly can bound history without touching the store.
func Window(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}
