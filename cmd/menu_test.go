package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single line", "alice\n", []string{"alice"}},
		{"trims whitespace", "  2 \r\n", []string{"2"}},
		{"last line without newline", "1\nbob", []string{"1", "bob"}},
		{"empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bufio.NewReader(strings.NewReader(tt.input))
			var got []string
			for {
				line, err := readLine(io.Discard, in, "")
				if err != nil {
					if !errors.Is(err, io.EOF) {
						t.Fatalf("unexpected error %v", err)
					}
					break
				}
				got = append(got, line)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"audit", "ban", "login", "register", "users", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

// newMenuApp builds an app over a file store in a temporary directory with
// alice registered.
func newMenuApp(t *testing.T) (*app, *store.FileStore, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := store.NewFileStore(t.TempDir(), log)
	require.NoError(t, fs.Init(ctx))

	ref, err := fs.WriteEncoding(ctx, "alice", facematch.Encoding{0.1, 0.2, 0.3})
	require.NoError(t, err)
	active := store.NewRegistry[store.UserRecord]()
	active.Put("alice", store.UserRecord{Username: "alice", FaceFile: ref})
	require.NoError(t, fs.SaveActive(ctx, active))

	out := &bytes.Buffer{}
	return &app{log: log, store: fs, out: out}, fs, out
}

func readRegistries(t *testing.T, fs *store.FileStore) (active, banned []byte) {
	t.Helper()
	active, err := os.ReadFile(filepath.Join(fs.Dir(), constants.ActiveRegistryFile))
	require.NoError(t, err)
	banned, err = os.ReadFile(filepath.Join(fs.Dir(), constants.BannedRegistryFile))
	require.NoError(t, err)
	return active, banned
}

func TestMenuStep_InvalidBanSelection(t *testing.T) {
	tests := []struct {
		name      string
		selection string
	}{
		{"not a number", "x\n"},
		{"out of range", "2\n"},
		{"zero", "0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fs, out := newMenuApp(t)
			activeBefore, bannedBefore := readRegistries(t, fs)

			a.menuStep(context.Background(), bufio.NewReader(strings.NewReader(tt.selection)), "4")

			assert.Contains(t, out.String(), "1. alice")
			assert.Contains(t, out.String(), "Invalid selection")
			activeAfter, bannedAfter := readRegistries(t, fs)
			assert.Equal(t, activeBefore, activeAfter)
			assert.Equal(t, bannedBefore, bannedAfter)
		})
	}
}

func TestMenuStep_UnknownChoice(t *testing.T) {
	a, _, out := newMenuApp(t)

	a.menuStep(context.Background(), bufio.NewReader(strings.NewReader("")), "9")

	assert.Equal(t, "Invalid choice. Please try again.\n", out.String())
}

func TestMenuStep_RecoversFromPanic(t *testing.T) {
	a, _, out := newMenuApp(t)
	a.store = nil

	assert.NotPanics(t, func() {
		a.menuStep(context.Background(), bufio.NewReader(strings.NewReader("1\n")), "4")
	})
	assert.Contains(t, out.String(), "An error occurred:")
}

func TestMenu_ContinuesAfterFailedActions(t *testing.T) {
	tests := []struct {
		name      string
		nilStore  bool
		input     string
		wantShown string
	}{
		{"invalid selection", false, "4\nx\n3\n", "Invalid selection"},
		{"unknown choice", false, "7\n3\n", "Invalid choice"},
		{"panicking action", true, "4\n3\n", "An error occurred:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fs, out := newMenuApp(t)
			if tt.nilStore {
				a.store = nil
			}

			err := a.menu(context.Background(), bufio.NewReader(strings.NewReader(tt.input)))
			require.NoError(t, err)

			shown := out.String()
			assert.Contains(t, shown, tt.wantShown)
			assert.True(t, strings.HasSuffix(shown, "Goodbye!\n"), "menu should end with Goodbye, got %q", shown)
			assert.Equal(t, 2, strings.Count(shown, "=== Face Authentication System ==="))

			active, err := fs.LoadActive(context.Background())
			require.NoError(t, err)
			assert.True(t, active.Has("alice"))
		})
	}
}

func TestMenu_EndOfInputExits(t *testing.T) {
	a, _, out := newMenuApp(t)

	err := a.menu(context.Background(), bufio.NewReader(strings.NewReader("")))
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "Goodbye!")
}
