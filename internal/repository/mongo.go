package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the document-store repository. Playlists hold their ordered
// membership in a songs array and users hold their favorites set, so
// every membership change is a single-document $addToSet or $pull.
type Mongo struct {
	client    *mongo.Client
	users     *mongo.Collection
	songs     *mongo.Collection
	playlists *mongo.Collection
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	IsPremium bool      `bson:"is_premium"`
	Favorites []string  `bson:"favorites"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type songDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Artist        string    `bson:"artist"`
	Album         string    `bson:"album"`
	Genre         string    `bson:"genre"`
	Duration      int       `bson:"duration"`
	AudioKey      string    `bson:"audio_key"`
	AudioMimeType string    `bson:"audio_mime_type"`
	CoverKey      string    `bson:"cover_key"`
	CoverMimeType string    `bson:"cover_mime_type"`
	StreamURL     string    `bson:"stream_url"`
	IsOffline     bool      `bson:"is_offline"`
	OwnerID       string    `bson:"owner_id"`
	Plays         int64     `bson:"plays"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type playlistDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Description   string    `bson:"description"`
	CoverKey      string    `bson:"cover_key"`
	CoverMimeType string    `bson:"cover_mime_type"`
	OwnerID       string    `bson:"owner_id"`
	IsPublic      bool      `bson:"is_public"`
	Songs         []string  `bson:"songs"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// NewMongo connects, pings and ensures the indexes the repository relies on.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(30 * time.Second).
		SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	db := client.Database(database)
	r := &Mongo{
		client:    client,
		users:     db.Collection("users"),
		songs:     db.Collection("songs"),
		playlists: db.Collection("playlists"),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	_, err = r.songs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "plays", Value: -1}}},
		{Keys: bson.D{{Key: "genre", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create song indexes: %w", err)
	}
	_, err = r.playlists.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "songs", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create playlist indexes: %w", err)
	}
	return nil
}

func (r *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", what, errs.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (d userDoc) model() models.User {
	id, _ := uuid.Parse(d.ID)
	return models.User{
		ID:        id,
		Username:  d.Username,
		Email:     d.Email,
		Password:  d.Password,
		IsPremium: d.IsPremium,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func songDocFrom(s *models.Song) songDoc {
	return songDoc{
		ID:            s.ID.String(),
		Title:         s.Title,
		Artist:        s.Artist,
		Album:         s.Album,
		Genre:         s.Genre,
		Duration:      s.Duration,
		AudioKey:      s.AudioKey,
		AudioMimeType: s.AudioMimeType,
		CoverKey:      s.CoverKey,
		CoverMimeType: s.CoverMimeType,
		StreamURL:     s.StreamURL,
		IsOffline:     s.IsOffline,
		OwnerID:       s.OwnerID.String(),
		Plays:         s.Plays,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (d songDoc) model() models.Song {
	id, _ := uuid.Parse(d.ID)
	owner, _ := uuid.Parse(d.OwnerID)
	return models.Song{
		ID:            id,
		Title:         d.Title,
		Artist:        d.Artist,
		Album:         d.Album,
		Genre:         d.Genre,
		Duration:      d.Duration,
		AudioKey:      d.AudioKey,
		AudioMimeType: d.AudioMimeType,
		CoverKey:      d.CoverKey,
		CoverMimeType: d.CoverMimeType,
		StreamURL:     d.StreamURL,
		IsOffline:     d.IsOffline,
		OwnerID:       owner,
		Plays:         d.Plays,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func (d playlistDoc) model() models.Playlist {
	id, _ := uuid.Parse(d.ID)
	owner, _ := uuid.Parse(d.OwnerID)
	return models.Playlist{
		ID:            id,
		Name:          d.Name,
		Description:   d.Description,
		CoverKey:      d.CoverKey,
		CoverMimeType: d.CoverMimeType,
		OwnerID:       owner,
		IsPublic:      d.IsPublic,
		SongIDs:       parseIDs(d.Songs),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Users

func (r *Mongo) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	doc := userDoc{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.Password,
		IsPremium: user.IsPremium,
		Favorites: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.users.InsertOne(ctx, doc)
	return mongoErr(err, "failed to create user")
}

func (r *Mongo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err, "user")
	}
	user := doc.model()
	return &user, nil
}

func (r *Mongo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, mongoErr(err, "user")
	}
	user := doc.model()
	return &user, nil
}

func (r *Mongo) CountUsers(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

// Songs

func (r *Mongo) CreateSong(ctx context.Context, song *models.Song) error {
	if song.ID == uuid.Nil {
		song.ID = uuid.New()
	}
	now := time.Now().UTC()
	song.CreatedAt, song.UpdatedAt = now, now
	_, err := r.songs.InsertOne(ctx, songDocFrom(song))
	return mongoErr(err, "failed to create song")
}

func (r *Mongo) GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	var doc songDoc
	if err := r.songs.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err, "song")
	}
	song := doc.model()
	return &song, nil
}

func (r *Mongo) findSongs(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Song, error) {
	cursor, err := r.songs.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []songDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	songs := make([]models.Song, len(docs))
	for i, d := range docs {
		songs[i] = d.model()
	}
	return songs, nil
}

func (r *Mongo) GetSongsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Song, error) {
	if len(ids) == 0 {
		return []models.Song{}, nil
	}
	songs, err := r.findSongs(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}
	return orderByIDs(ids, songs), nil
}

func containsInsensitive(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func (r *Mongo) ListSongs(ctx context.Context, filter models.SongFilter) ([]models.Song, int64, error) {
	query := bson.M{}
	if filter.Genre != "" {
		query["genre"] = filter.Genre
	}
	if filter.Artist != "" {
		query["artist"] = containsInsensitive(filter.Artist)
	}
	if filter.Search != "" {
		term := containsInsensitive(filter.Search)
		query["$or"] = bson.A{
			bson.M{"title": term},
			bson.M{"artist": term},
			bson.M{"album": term},
		}
	}

	total, err := r.songs.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count songs: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit))
	songs, err := r.findSongs(ctx, query, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list songs: %w", err)
	}
	return songs, total, nil
}

func (r *Mongo) TopSongs(ctx context.Context, limit int) ([]models.Song, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "plays", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	songs, err := r.findSongs(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load top songs: %w", err)
	}
	return songs, nil
}

func (r *Mongo) UpdateSong(ctx context.Context, id uuid.UUID, patch models.SongPatch) (*models.Song, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range patch.Columns() {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc songDoc
	err := r.songs.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, mongoErr(err, "song")
	}
	song := doc.model()
	return &song, nil
}

// DeleteSong removes the song first so no new reference can resolve it,
// then pulls the id out of every playlist and favorites set.
func (r *Mongo) DeleteSong(ctx context.Context, id uuid.UUID) error {
	sid := id.String()
	result, err := r.songs.DeleteOne(ctx, bson.M{"_id": sid})
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("song: %w", errs.ErrNotFound)
	}
	if _, err := r.playlists.UpdateMany(ctx, bson.M{"songs": sid}, bson.M{"$pull": bson.M{"songs": sid}}); err != nil {
		return fmt.Errorf("failed to remove playlist entries: %w", err)
	}
	if _, err := r.users.UpdateMany(ctx, bson.M{"favorites": sid}, bson.M{"$pull": bson.M{"favorites": sid}}); err != nil {
		return fmt.Errorf("failed to remove favorites: %w", err)
	}
	return nil
}

func (r *Mongo) IncrementPlays(ctx context.Context, id uuid.UUID) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"plays": 1})

	var doc struct {
		Plays int64 `bson:"plays"`
	}
	err := r.songs.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$inc": bson.M{"plays": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, mongoErr(err, "song")
	}
	return doc.Plays, nil
}

func (r *Mongo) CountSongs(ctx context.Context) (int64, error) {
	return r.songs.CountDocuments(ctx, bson.M{})
}

// Playlists

func (r *Mongo) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if playlist.ID == uuid.Nil {
		playlist.ID = uuid.New()
	}
	if playlist.SongIDs == nil {
		playlist.SongIDs = []uuid.UUID{}
	}
	now := time.Now().UTC()
	playlist.CreatedAt, playlist.UpdatedAt = now, now

	doc := playlistDoc{
		ID:            playlist.ID.String(),
		Name:          playlist.Name,
		Description:   playlist.Description,
		CoverKey:      playlist.CoverKey,
		CoverMimeType: playlist.CoverMimeType,
		OwnerID:       playlist.OwnerID.String(),
		IsPublic:      playlist.IsPublic,
		Songs:         idStrings(playlist.SongIDs),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := r.playlists.InsertOne(ctx, doc)
	return mongoErr(err, "failed to create playlist")
}

func (r *Mongo) GetPlaylist(ctx context.Context, id uuid.UUID) (*models.Playlist, error) {
	var doc playlistDoc
	if err := r.playlists.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err, "playlist")
	}
	playlist := doc.model()
	return &playlist, nil
}

func (r *Mongo) ListPlaylistsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playlist, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.playlists.Find(ctx, bson.M{"owner_id": ownerID.String()}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []playlistDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}
	playlists := make([]models.Playlist, len(docs))
	for i, d := range docs {
		playlists[i] = d.model()
	}
	return playlists, nil
}

func (r *Mongo) UpdatePlaylist(ctx context.Context, id uuid.UUID, patch models.PlaylistPatch) (*models.Playlist, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range patch.Columns() {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc playlistDoc
	err := r.playlists.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, mongoErr(err, "playlist")
	}
	playlist := doc.model()
	return &playlist, nil
}

func (r *Mongo) updatePlaylist(ctx context.Context, id uuid.UUID, update bson.M) error {
	result, err := r.playlists.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("playlist: %w", errs.ErrNotFound)
	}
	return nil
}

func (r *Mongo) DeletePlaylist(ctx context.Context, id uuid.UUID) error {
	result, err := r.playlists.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("playlist: %w", errs.ErrNotFound)
	}
	return nil
}

func (r *Mongo) AddPlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error {
	return r.updatePlaylist(ctx, playlistID, bson.M{"$addToSet": bson.M{"songs": songID.String()}})
}

func (r *Mongo) RemovePlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error {
	return r.updatePlaylist(ctx, playlistID, bson.M{"$pull": bson.M{"songs": songID.String()}})
}

func (r *Mongo) CountPlaylists(ctx context.Context) (int64, error) {
	return r.playlists.CountDocuments(ctx, bson.M{})
}

// Favorites

func (r *Mongo) updateFavorites(ctx context.Context, userID uuid.UUID, update bson.M) error {
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": userID.String()}, update)
	if err != nil {
		return fmt.Errorf("failed to update favorites: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user: %w", errs.ErrNotFound)
	}
	return nil
}

func (r *Mongo) AddFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	return r.updateFavorites(ctx, userID, bson.M{"$addToSet": bson.M{"favorites": songID.String()}})
}

func (r *Mongo) RemoveFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	return r.updateFavorites(ctx, userID, bson.M{"$pull": bson.M{"favorites": songID.String()}})
}

func (r *Mongo) ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	opts := options.FindOne().SetProjection(bson.M{"favorites": 1})
	var doc struct {
		Favorites []string `bson:"favorites"`
	}
	if err := r.users.FindOne(ctx, bson.M{"_id": userID.String()}, opts).Decode(&doc); err != nil {
		return nil, mongoErr(err, "user")
	}
	return parseIDs(doc.Favorites), nil
}
