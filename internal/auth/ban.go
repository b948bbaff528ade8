package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/metrics"
	"github.com/kozaktomas/face-gate/internal/store"
)

// Banner moves users from the active registry to the banned registry.
// There is no way back.
type Banner struct {
	Store   store.Store
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// List returns the active usernames in the order they are offered for selection.
func (b *Banner) List(ctx context.Context) ([]string, error) {
	active, err := b.Store.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	return active.Keys(), nil
}

// BanSelection bans the user at the 1-based position selection of List.
func (b *Banner) BanSelection(ctx context.Context, selection string) (store.BannedRecord, error) {
	active, err := b.Store.LoadActive(ctx)
	if err != nil {
		return store.BannedRecord{}, err
	}
	if active.Len() == 0 {
		return store.BannedRecord{}, fmt.Errorf("%w: no users registered", ErrSelection)
	}

	n, err := strconv.Atoi(strings.TrimSpace(selection))
	if err != nil {
		return store.BannedRecord{}, fmt.Errorf("%w: %q is not a number", ErrSelection, selection)
	}
	if n < 1 || n > active.Len() {
		return store.BannedRecord{}, fmt.Errorf("%w: %d is out of range 1-%d", ErrSelection, n, active.Len())
	}

	username, _, _ := active.At(n - 1)
	return b.ban(ctx, active, username)
}

// BanUser bans username.
func (b *Banner) BanUser(ctx context.Context, username string) (store.BannedRecord, error) {
	active, err := b.Store.LoadActive(ctx)
	if err != nil {
		return store.BannedRecord{}, err
	}
	return b.ban(ctx, active, facematch.NormalizeUsername(username))
}

// ban writes the banned registry before the active one. If the active save
// fails the previous banned registry is written back. Should that fail too the
// user is left in both registries, and login checks bans first.
func (b *Banner) ban(ctx context.Context, active *store.ActiveRegistry, username string) (store.BannedRecord, error) {
	rec, ok := active.Get(username)
	if !ok {
		return store.BannedRecord{}, fmt.Errorf("%w: user %q not found", ErrSelection, username)
	}

	banned, err := b.Store.LoadBanned(ctx)
	if err != nil {
		return store.BannedRecord{}, err
	}
	previous := banned.Clone()

	log := b.Log
	if log == nil {
		log = slog.Default()
	}

	entry := store.BannedRecord{UserRecord: rec, BannedAt: time.Now().UTC()}
	banned.Put(username, entry)
	if err := b.Store.SaveBanned(ctx, banned); err != nil {
		return store.BannedRecord{}, err
	}

	active.Delete(username)
	if err := b.Store.SaveActive(ctx, active); err != nil {
		if rbErr := b.Store.SaveBanned(ctx, previous); rbErr != nil {
			log.Error("failed to restore banned registry, user stays banned",
				"username", username, "error", rbErr)
		}
		return store.BannedRecord{}, err
	}

	b.Metrics.IncBan()
	log.Info("user banned", "username", username, "ref", rec.FaceFile)
	return entry, nil
}
