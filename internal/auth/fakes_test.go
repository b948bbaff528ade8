package auth

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/stretchr/testify/require"
)

var (
	encAlice = facematch.Encoding{1, 0, 0}
	encBob   = facematch.Encoding{0, 1, 0}
	encEve   = facematch.Encoding{0, 0, 1}
)

// frame returns a distinct frame whose width encodes its index.
func frame(i int) image.Image {
	return image.NewGray(image.Rect(0, 0, i+1, 1))
}

func frameIndex(img image.Image) int {
	return img.Bounds().Dx() - 1
}

func frames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = frame(i)
	}
	return out
}

var faceBox = image.Rect(10, 10, 50, 50)

type fakeSource struct {
	frames []image.Image
	repeat bool // keep returning the last frame instead of running dry
	pos    int
	closed bool
}

func (s *fakeSource) Read() (image.Image, bool) {
	if s.pos >= len(s.frames) {
		if s.repeat && len(s.frames) > 0 {
			return s.frames[len(s.frames)-1], true
		}
		return nil, false
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeDisplay struct {
	keys       map[int]Key // Show call index -> key
	shows      []Overlay
	countdowns []int
	countKey   Key
	banned     int
	closed     bool
}

func (d *fakeDisplay) ShowCountdown(_ image.Image, remaining int) Key {
	d.countdowns = append(d.countdowns, remaining)
	return d.countKey
}

func (d *fakeDisplay) Show(_ image.Image, o Overlay) Key {
	idx := len(d.shows)
	d.shows = append(d.shows, o)
	return d.keys[idx]
}

func (d *fakeDisplay) ShowBanned() {
	d.banned++
}

func (d *fakeDisplay) Close() error {
	d.closed = true
	return nil
}

type fakeRecognizer struct {
	boxes      map[int][]image.Rectangle // frame index -> detected faces
	encs       map[int]facematch.Encoding
	encErrs    map[int]error
	detectErr  error
	detectErrs map[int]error
	encoded    []image.Rectangle
}

func (r *fakeRecognizer) Detect(_ context.Context, img image.Image) ([]image.Rectangle, error) {
	if r.detectErr != nil {
		return nil, r.detectErr
	}
	i := frameIndex(img)
	if err := r.detectErrs[i]; err != nil {
		return nil, err
	}
	return r.boxes[i], nil
}

func (r *fakeRecognizer) Encode(_ context.Context, img image.Image, box image.Rectangle) (facematch.Encoding, error) {
	r.encoded = append(r.encoded, box)
	i := frameIndex(img)
	if err := r.encErrs[i]; err != nil {
		return nil, err
	}
	if enc, ok := r.encs[i]; ok {
		return enc, nil
	}
	return nil, errors.New("no face")
}

type fakeDevices struct {
	src    *fakeSource
	disp   *fakeDisplay
	srcErr error
	opened int
	titles []string
}

func (d *fakeDevices) OpenSource() (FrameSource, error) {
	if d.srcErr != nil {
		return nil, d.srcErr
	}
	d.opened++
	return d.src, nil
}

func (d *fakeDevices) OpenDisplay(title string) (Display, error) {
	d.titles = append(d.titles, title)
	return d.disp, nil
}

func newDevices(src *fakeSource) *fakeDevices {
	return &fakeDevices{src: src, disp: &fakeDisplay{keys: map[int]Key{}}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	s := store.NewFileStore(t.TempDir(), discardLogger())
	require.NoError(t, s.Init(context.Background()))
	return s
}

// seedActive registers users directly in the store, in the given order.
func seedActive(t *testing.T, s store.Store, users ...any) {
	t.Helper()
	ctx := context.Background()
	reg, err := s.LoadActive(ctx)
	require.NoError(t, err)
	for i := 0; i < len(users); i += 2 {
		name := users[i].(string)
		ref, err := s.WriteEncoding(ctx, name, users[i+1].(facematch.Encoding))
		require.NoError(t, err)
		reg.Put(name, store.UserRecord{Username: name, FaceFile: ref})
	}
	require.NoError(t, s.SaveActive(ctx, reg))
}

func registryFiles(t *testing.T, s *store.FileStore) (active, banned []byte) {
	t.Helper()
	active, err := os.ReadFile(filepath.Join(s.Dir(), constants.ActiveRegistryFile))
	require.NoError(t, err)
	banned, err = os.ReadFile(filepath.Join(s.Dir(), constants.BannedRegistryFile))
	require.NoError(t, err)
	return active, banned
}

func blobCount(t *testing.T, s store.Store) int {
	t.Helper()
	n, err := s.CountEncodings(context.Background())
	require.NoError(t, err)
	return n
}

// failingStore fails the selected saves.
type failingStore struct {
	store.Store
	activeErr error
	bannedErr error
}

func (f *failingStore) SaveActive(ctx context.Context, r *store.ActiveRegistry) error {
	if f.activeErr != nil {
		return f.activeErr
	}
	return f.Store.SaveActive(ctx, r)
}

func (f *failingStore) SaveBanned(ctx context.Context, r *store.BannedRegistry) error {
	if f.bannedErr != nil {
		return f.bannedErr
	}
	return f.Store.SaveBanned(ctx, r)
}
