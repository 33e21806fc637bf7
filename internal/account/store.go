// Package account owns user accounts and their logged-in state.
package account

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/common"
)

// User is a registered account. PasswordHash is an argon2id hash.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	ID           int    `json:"id"`
	LoggedIn     bool   `json:"loggedIn"`
}

// FileStore persists accounts as "username passwordHash id" lines.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore constructs a store for path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads every account. A missing file yields an empty map.
func (s *FileStore) Load() (map[string]User, error) {
	users := map[string]User{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts %s: %w", s.path, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			s.logger.Warn().Int("line", lineNo).Msg("skipping malformed account line")
			continue
		}
		id, err := strconv.Atoi(fields[2])
		if err != nil {
			s.logger.Warn().Int("line", lineNo).Err(err).Msg("skipping account with bad id")
			continue
		}
		users[fields[0]] = User{Username: fields[0], PasswordHash: fields[1], ID: id}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan accounts %s: %w", s.path, err)
	}
	return users, nil
}

// Save rewrites the account file atomically, ordered by username.
func (s *FileStore) Save(users map[string]User) error {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	slices.Sort(names)
	var buf bytes.Buffer
	for _, name := range names {
		u := users[name]
		fmt.Fprintf(&buf, "%s %s %d\n", u.Username, u.PasswordHash, u.ID)
	}
	return common.WriteFileAtomic(s.path, buf.Bytes())
}

// SessionLog is the append-only "username loggedIn" record of session changes.
type SessionLog struct {
	path string
}

// NewSessionLog constructs a session log at path.
func NewSessionLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

// Append records a session state change.
func (l *SessionLog) Append(username string, loggedIn bool) error {
	flag := "0"
	if loggedIn {
		flag = "1"
	}
	return common.AppendFile(l.path, []byte(username+" "+flag+"\n"))
}

// Load replays the log and returns the latest state per username.
func (l *SessionLog) Load() (map[string]bool, error) {
	out := map[string]bool{}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions %s: %w", l.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		out[fields[0]] = fields[1] == "1"
	}
	return out, nil
}
