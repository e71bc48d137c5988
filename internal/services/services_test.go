package services

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/repository"
	"github.com/soundvault/backend/internal/storage"
	"github.com/soundvault/backend/internal/testinfra"
)

const testMaxUpload = 1024

type fixture struct {
	repo      *repository.Gorm
	store     *storage.Local
	dir       string
	songs     *SongService
	playlists *PlaylistService
	favorites *FavoriteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewGorm(testinfra.NewSQLiteDB(t))
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		repo:      repo,
		store:     store,
		dir:       dir,
		songs:     NewSongService(repo, store, testMaxUpload),
		playlists: NewPlaylistService(repo, repo, store, testMaxUpload),
		favorites: NewFavoriteService(repo, repo),
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	if err := f.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func (f *fixture) fileCount(t *testing.T) int {
	t.Helper()
	n := 0
	_ = filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func audioUpload(data string) *Upload {
	return &Upload{Filename: "track.mp3", ContentType: "audio/mpeg", Size: int64(len(data)), Body: strings.NewReader(data)}
}

func coverUpload() *Upload {
	return &Upload{Filename: "cover.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func (f *fixture) uploadSong(t *testing.T, owner uuid.UUID, title string) *models.Song {
	t.Helper()
	song, err := f.songs.Create(context.Background(), owner, CreateSongInput{
		Title:  title,
		Artist: "Someone",
		Audio:  audioUpload("audio-bytes-" + title),
		Cover:  coverUpload(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return song
}

func TestSongCreateValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")

	tests := []struct {
		name string
		in   CreateSongInput
		want error
	}{
		{"no playable source", CreateSongInput{Title: "t", Artist: "a"}, errs.ErrInvalidInput},
		{"missing title", CreateSongInput{Artist: "a", StreamURL: "https://x.example/a.mp3"}, errs.ErrInvalidInput},
		{"bad stream url", CreateSongInput{Title: "t", Artist: "a", StreamURL: "ftp://x"}, errs.ErrInvalidInput},
		{"negative duration", CreateSongInput{Title: "t", Artist: "a", Duration: -1, StreamURL: "https://x.example/a"}, errs.ErrInvalidInput},
		{"image as audio", CreateSongInput{Title: "t", Artist: "a", Audio: coverUpload()}, errs.ErrInvalidInput},
		{"declared too large", CreateSongInput{Title: "t", Artist: "a", Audio: &Upload{Filename: "a.mp3", ContentType: "audio/mpeg", Size: testMaxUpload + 1, Body: strings.NewReader("x")}}, errs.ErrTooLarge},
		{"actually too large", CreateSongInput{Title: "t", Artist: "a", Audio: &Upload{Filename: "a.mp3", ContentType: "audio/mpeg", Body: bytes.NewReader(make([]byte, testMaxUpload+10))}}, errs.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.songs.Create(context.Background(), owner, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if n := f.fileCount(t); n != 0 {
		t.Errorf("rejected uploads left %d files behind", n)
	}
	if _, err := f.songs.Create(context.Background(), uuid.Nil, CreateSongInput{Title: "t", Artist: "a", StreamURL: "https://x.example/a"}); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestSongCreateWithExternalStreamOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")

	song, err := f.songs.Create(context.Background(), owner, CreateSongInput{
		Title: "Live", Artist: "Radio", StreamURL: "https://radio.example/live",
	})
	if err != nil {
		t.Fatal(err)
	}
	if song.HasLocalAudio() || song.OwnerID != owner {
		t.Errorf("unexpected song %+v", song)
	}
	if v := NewSongView(*song); v.AudioURL != "https://radio.example/live" {
		t.Errorf("external song should link its stream, got %q", v.AudioURL)
	}
}

func TestSongCreateStoresBytes(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "alice")
	song := f.uploadSong(t, owner, "one")

	if song.AudioKey == "" || song.CoverKey == "" {
		t.Fatalf("keys not recorded: %+v", song)
	}
	if song.AudioMimeType != "audio/mpeg" || song.CoverMimeType != "image/png" {
		t.Errorf("unexpected mime types %q %q", song.AudioMimeType, song.CoverMimeType)
	}
	size, err := f.store.Stat(context.Background(), song.AudioKey)
	if err != nil || size != int64(len("audio-bytes-one")) {
		t.Errorf("stored audio size = %d, %v", size, err)
	}
}

func TestSongDeleteForbiddenLeavesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	song := f.uploadSong(t, alice, "mine")
	before := f.fileCount(t)

	if err := f.songs.Delete(ctx, bob, song.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	got, err := f.repo.GetSong(ctx, song.ID)
	if err != nil {
		t.Fatalf("song vanished: %v", err)
	}
	if got.Title != song.Title || got.AudioKey != song.AudioKey {
		t.Errorf("song changed: %+v", got)
	}
	if after := f.fileCount(t); after != before {
		t.Errorf("files changed from %d to %d", before, after)
	}
}

func TestSongDeleteByOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	song := f.uploadSong(t, alice, "gone")

	pl, err := f.playlists.Create(ctx, alice, CreatePlaylistInput{Name: "mix", IsPublic: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.playlists.AddSong(ctx, alice, pl.ID, song.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.favorites.Add(ctx, alice, song.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.songs.Delete(ctx, alice, song.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := f.fileCount(t); n != 0 {
		t.Errorf("expected stored bytes released, %d files remain", n)
	}
	if _, err := f.repo.GetSong(ctx, song.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected record removed, got %v", err)
	}

	view, err := f.playlists.Get(ctx, alice, pl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.SongIDs) != 0 || len(view.Songs) != 0 {
		t.Errorf("playlist still references deleted song: %+v", view)
	}
	favs, _ := f.favorites.List(ctx, alice)
	if len(favs) != 0 {
		t.Errorf("favorites still reference deleted song: %+v", favs)
	}
}

// failingDelete is a song store whose record delete always errors.
type failingDelete struct {
	repository.SongStore
	err error
}

func (s failingDelete) DeleteSong(context.Context, uuid.UUID) error { return s.err }

func TestSongDeleteKeepsBytesWhenRecordDeleteFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	song := f.uploadSong(t, alice, "stays")
	before := f.fileCount(t)

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantFiles int
	}{
		{"record delete fails", errors.New("connection reset"), true, before},
		{"concurrent delete won", errs.ErrNotFound, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSongService(failingDelete{SongStore: f.repo, err: tt.err}, f.store, testMaxUpload)
			err := svc.Delete(ctx, alice, song.ID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete error = %v, wantErr %v", err, tt.wantErr)
			}
			if n := f.fileCount(t); n != tt.wantFiles {
				t.Errorf("files = %d, want %d", n, tt.wantFiles)
			}
		})
	}
}

func TestSongUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	stored := f.uploadSong(t, alice, "stored")
	external, err := f.songs.Create(ctx, alice, CreateSongInput{Title: "ext", Artist: "a", StreamURL: "https://x.example/a"})
	if err != nil {
		t.Fatal(err)
	}

	title := "  Renamed  "
	got, err := f.songs.Update(ctx, alice, stored.ID, models.SongPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Renamed" || got.OwnerID != alice || got.AudioKey != stored.AudioKey {
		t.Errorf("unexpected result %+v", got)
	}

	empty := ""
	tests := []struct {
		name     string
		identity uuid.UUID
		id       uuid.UUID
		patch    models.SongPatch
		want     error
	}{
		{"other user", bob, stored.ID, models.SongPatch{Title: &title}, errs.ErrForbidden},
		{"anonymous", uuid.Nil, stored.ID, models.SongPatch{Title: &title}, errs.ErrUnauthenticated},
		{"unknown song", alice, uuid.New(), models.SongPatch{Title: &title}, errs.ErrNotFound},
		{"empty patch", alice, stored.ID, models.SongPatch{}, errs.ErrInvalidInput},
		{"blank title", alice, stored.ID, models.SongPatch{Title: &empty}, errs.ErrInvalidInput},
		{"drop only source", alice, external.ID, models.SongPatch{StreamURL: &empty}, errs.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.songs.Update(ctx, tt.identity, tt.id, tt.patch); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// Stored audio keeps the song playable without a stream URL.
	if _, err := f.songs.Update(ctx, alice, stored.ID, models.SongPatch{StreamURL: &empty}); err != nil {
		t.Errorf("clearing stream_url of a stored song should pass, got %v", err)
	}
}

func TestRecordPlay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	song := f.uploadSong(t, f.user(t, "alice"), "one")

	plays, err := f.songs.RecordPlay(ctx, song.ID)
	if err != nil || plays != 1 {
		t.Fatalf("RecordPlay = %d, %v", plays, err)
	}
	if _, err := f.songs.RecordPlay(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if n, _ := f.repo.CountSongs(ctx); n != 1 {
		t.Errorf("expected no new records, have %d songs", n)
	}
}

func TestSongList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "alice")
	for i := 0; i < 5; i++ {
		f.uploadSong(t, owner, string(rune('a'+i)))
	}

	page, err := f.songs.List(ctx, models.SongFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || page.TotalPages != 3 || page.CurrentPage != 2 || len(page.Songs) != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	page, _ = f.songs.List(ctx, models.SongFilter{Page: 0, Limit: 1000})
	if len(page.Songs) != 5 || page.CurrentPage != 1 {
		t.Errorf("expected defaults to be applied, got %+v", page)
	}
}

func TestPlaylistMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	a := f.uploadSong(t, alice, "a")
	b := f.uploadSong(t, bob, "b")

	pl, err := f.playlists.Create(ctx, alice, CreatePlaylistInput{Name: "mix", IsPublic: true, Cover: coverUpload()})
	if err != nil {
		t.Fatal(err)
	}
	if pl.CoverURL == "" {
		t.Error("expected cover url")
	}

	for _, id := range []uuid.UUID{b.ID, a.ID, b.ID} {
		if _, err := f.playlists.AddSong(ctx, alice, pl.ID, id); err != nil {
			t.Fatalf("AddSong: %v", err)
		}
	}
	view, _ := f.playlists.Get(ctx, uuid.Nil, pl.ID)
	if len(view.Songs) != 2 || view.Songs[0].ID != b.ID || view.Songs[1].ID != a.ID {
		t.Fatalf("unexpected order %+v", view.SongIDs)
	}

	if _, err := f.playlists.AddSong(ctx, bob, pl.ID, a.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := f.playlists.AddSong(ctx, alice, pl.ID, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found for unknown song, got %v", err)
	}
	if _, err := f.playlists.RemoveSong(ctx, bob, pl.ID, a.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected forbidden remove, got %v", err)
	}

	for i := 0; i < 2; i++ {
		view, err = f.playlists.RemoveSong(ctx, alice, pl.ID, b.ID)
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(view.SongIDs) != 1 || view.SongIDs[0] != a.ID {
		t.Errorf("unexpected membership %+v", view.SongIDs)
	}
}

func TestPlaylistVisibilityAndLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	pl, err := f.playlists.Create(ctx, alice, CreatePlaylistInput{Name: "secret", Cover: coverUpload()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.playlists.Get(ctx, alice, pl.ID); err != nil {
		t.Errorf("owner should see private playlist: %v", err)
	}
	for _, viewer := range []uuid.UUID{bob, uuid.Nil} {
		if _, err := f.playlists.Get(ctx, viewer, pl.ID); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("viewer %s: expected not found, got %v", viewer, err)
		}
	}

	public := true
	name := "open"
	if _, err := f.playlists.Update(ctx, bob, pl.ID, models.PlaylistPatch{IsPublic: &public}); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected forbidden update, got %v", err)
	}
	updated, err := f.playlists.Update(ctx, alice, pl.ID, models.PlaylistPatch{IsPublic: &public, Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.IsPublic || updated.Name != "open" {
		t.Errorf("patch not applied: %+v", updated.Playlist)
	}
	if _, err := f.playlists.Get(ctx, bob, pl.ID); err != nil {
		t.Errorf("public playlist should be visible: %v", err)
	}

	mine, err := f.playlists.ListMine(ctx, alice)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListMine = %d, %v", len(mine), err)
	}
	if theirs, _ := f.playlists.ListMine(ctx, bob); len(theirs) != 0 {
		t.Errorf("bob should have no playlists, got %d", len(theirs))
	}

	if err := f.playlists.Delete(ctx, bob, pl.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected forbidden delete, got %v", err)
	}
	if err := f.playlists.Delete(ctx, alice, pl.ID); err != nil {
		t.Fatal(err)
	}
	if n := f.fileCount(t); n != 0 {
		t.Errorf("cover not released, %d files remain", n)
	}
	if _, err := f.playlists.Get(ctx, alice, pl.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	song := f.uploadSong(t, alice, "fav")

	if _, err := f.favorites.Add(ctx, alice, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := f.favorites.Add(ctx, uuid.Nil, song.ID); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}

	var favs []SongView
	var err error
	for i := 0; i < 2; i++ {
		if favs, err = f.favorites.Add(ctx, alice, song.ID); err != nil {
			t.Fatal(err)
		}
	}
	if len(favs) != 1 || favs[0].ID != song.ID {
		t.Errorf("unexpected favorites %+v", favs)
	}
	for i := 0; i < 2; i++ {
		if favs, err = f.favorites.Remove(ctx, alice, song.ID); err != nil {
			t.Fatal(err)
		}
	}
	if len(favs) != 0 {
		t.Errorf("expected empty favorites, got %+v", favs)
	}
}

func TestStatsWithoutRedis(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	quiet := f.uploadSong(t, alice, "quiet")
	loud := f.uploadSong(t, alice, "loud")
	for i := 0; i < 3; i++ {
		_, _ = f.songs.RecordPlay(ctx, loud.ID)
	}
	_, _ = f.songs.RecordPlay(ctx, quiet.ID)

	stats, err := NewStatsService(f.repo, nil, time.Minute).Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSongs != 2 || stats.TotalUsers != 1 || stats.TotalPlaylists != 0 {
		t.Errorf("unexpected totals %+v", stats)
	}
	if len(stats.TopSongs) != 2 || stats.TopSongs[0].ID != loud.ID || stats.TopSongs[0].Plays != 3 {
		t.Errorf("unexpected top songs %+v", stats.TopSongs)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = 4
	return cfg
}

func TestAuthFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth := NewAuthService(f.repo, nil, testConfig())

	user, tokens, err := auth.Register(ctx, "alice", "Alice@Example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Errorf("unexpected register result %+v %+v", user, tokens)
	}

	if _, _, err := auth.Register(ctx, "alice", "other@example.com", "secret1"); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, _, err := auth.Register(ctx, "bo", "bo@example.com", "secret1"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected invalid username, got %v", err)
	}
	if _, _, err := auth.Register(ctx, "carol", "carol@example.com", "123"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected short password rejection, got %v", err)
	}

	if _, _, err := auth.Login(ctx, "alice@example.com", "wrong!"); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated for unknown email, got %v", err)
	}
	_, tokens, err = auth.Login(ctx, "ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := auth.ValidateAccessToken(ctx, tokens.AccessToken)
	if err != nil || claims.UserID != user.ID.String() {
		t.Fatalf("ValidateAccessToken = %+v, %v", claims, err)
	}
	if _, err := auth.ValidateAccessToken(ctx, tokens.RefreshToken); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("refresh token must not authenticate requests, got %v", err)
	}

	refreshed, err := auth.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil || refreshed.AccessToken == "" {
		t.Fatalf("RefreshToken = %+v, %v", refreshed, err)
	}
	if _, err := auth.RefreshToken(ctx, tokens.AccessToken); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("access token must not refresh, got %v", err)
	}

	if err := auth.Logout(ctx, claims, tokens.RefreshToken); err != nil {
		t.Errorf("Logout without redis should succeed, got %v", err)
	}
}
