package files

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSaveListOpen(t *testing.T) {
	store := NewStore(t.TempDir())

	names, err := store.List("alice")
	if err != nil || len(names) != 0 {
		t.Fatalf("new user: %v, %v", names, err)
	}

	for _, name := range []string{"b.xlsx", "a.xlsx", `C:\Users\alice\c.xlsx`, "../../d.xlsx"} {
		if _, err := store.Save("alice", name, strings.NewReader(name)); err != nil {
			t.Fatalf("%s: %s", name, err)
		}
	}
	names, err = store.List("alice")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"a.xlsx", "b.xlsx", "c.xlsx", "d.xlsx"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("%v != %v", names, expected)
	}

	f, err := store.Open("alice", "c.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != `C:\Users\alice\c.xlsx` {
		t.Errorf("unexpected content: %s", content)
	}

	if names, _ := store.List("bob"); len(names) != 0 {
		t.Errorf("bob sees alice's files: %v", names)
	}
}

func TestOpenMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Open("alice", "nope.xlsx")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestInvalidNames(t *testing.T) {
	store := NewStore(t.TempDir())
	usernames := []string{"", ".", "..", "a/b", `a\b`}
	for _, username := range usernames {
		if _, err := store.Save(username, "x.xlsx", strings.NewReader("")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("username %q: %v", username, err)
		}
		if _, err := store.List(username); !errors.Is(err, ErrInvalidName) {
			t.Errorf("username %q: %v", username, err)
		}
	}
	for _, name := range []string{"", "..", "dir/", "x/.."} {
		if _, err := store.Save("alice", name, strings.NewReader("")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("name %q: %v", name, err)
		}
	}
}
