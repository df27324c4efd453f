// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html

// Package files keeps each user's uploaded workbooks in a directory of
// their own under a common root.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid name")
	ErrNotFound    = errors.New("file not found")
)

type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\\x00")
}

// baseName drops any directory part a client sent along with a file name,
// whichever separator it used.
func baseName(name string) (string, error) {
	base := name[strings.LastIndexAny(name, "/\\")+1:]
	if !validName(base) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

func (s *Store) userDir(username string) (string, error) {
	if !validName(username) {
		return "", fmt.Errorf("%w: username %q", ErrInvalidName, username)
	}
	return filepath.Join(s.Root, username), nil
}

func (s *Store) path(username, name string) (string, error) {
	dir, err := s.userDir(username)
	if err != nil {
		return "", err
	}
	base, err := baseName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, base), nil
}

// Save writes r to the user's directory, replacing any file of the same
// name, and returns the name it was stored under.
func (s *Store) Save(username, name string, r io.Reader) (string, error) {
	path, err := s.path(username, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	log.Printf("Saved %d bytes to %s", n, path)
	return filepath.Base(path), f.Close()
}

// List returns the names of the user's files in sorted order. A user who
// never uploaded anything has no files.
func (s *Store) List(username string) ([]string, error) {
	dir, err := s.userDir(username)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Open opens one of the user's files for reading.
func (s *Store) Open(username, name string) (*os.File, error) {
	path, err := s.path(username, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, err
}
