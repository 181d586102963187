package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devsnippet/internal/cache"
	"devsnippet/internal/models"
	"devsnippet/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names of the document backend.
const (
	usersCollection    = "users"
	postsCollection    = "posts"
	cleanupsCollection = "media_cleanups"
)

// EnsureMongoIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "author", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "likes", Value: 1}}},
		},
		cleanupsCollection: {
			{Keys: bson.D{{Key: "publicId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "updatedAt", Value: 1}}},
		},
	}
	for name, specs := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// NewMongoStore wires the document repositories and ensures their indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	if err := EnsureMongoIndexes(ctx, db); err != nil {
		return nil, err
	}
	users := db.Collection(usersCollection)
	posts := db.Collection(postsCollection)
	return &Store{
		Users:    &mongoUserRepository{users: users, posts: posts},
		Posts:    &mongoPostRepository{users: users, posts: posts},
		Cleanups: &mongoCleanupRepository{coll: db.Collection(cleanupsCollection)},
		Ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
	}, nil
}

func findOptions(sortField string, order, limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: order}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

type mongoUserRepository struct {
	users *mongo.Collection
	posts *mongo.Collection
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("get_by_id", usersCollection)()
		if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Prepare()
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Username or email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mongoUserRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get_by_id_for_update", usersCollection)()
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("User")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *models.User, columns ...string) error {
	cols, err := updateColumns(columns)
	if err != nil {
		return err
	}
	user.Email = models.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now().UTC()

	fields := map[string]bson.E{
		ColUsername:     {Key: "username", Value: user.Username},
		ColEmail:        {Key: "email", Value: user.Email},
		ColRole:         {Key: "role", Value: user.Role},
		ColBio:          {Key: "bio", Value: user.Bio},
		ColProfilePic:   {Key: "profilePic", Value: user.ProfilePic},
		ColProfilePicID: {Key: "profilePicId", Value: user.ProfilePicID},
		"updated_at":    {Key: "updatedAt", Value: user.UpdatedAt},
	}
	set := bson.D{}
	for _, c := range cols {
		set = append(set, fields[c])
	}

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set})
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Username or email already exists")
		}
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User")
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

// DeleteWithContent runs the cascade as a sequence of single-collection writes.
// A failure part way leaves orphaned posts behind for the sweep to collect.
func (r *mongoUserRepository) DeleteWithContent(ctx context.Context, id string) (*DeletedAccount, error) {
	var deleted DeletedAccount
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&deleted.User); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("User")
		}
		return nil, models.NewInternalError(err)
	}

	var posts []models.Post
	cur, err := r.posts.Find(ctx, bson.M{"author": id})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	deleted.PostIDs = postIDsOf(posts)
	deleted.Media = mediaRefsOf(posts)

	if _, err := r.users.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(deleted.PostIDs) > 0 {
		if _, err := r.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": deleted.PostIDs}}); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	var liked []models.Post
	cur, err = r.posts.Find(ctx, bson.M{"likes": id}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &liked); err != nil {
		return nil, models.NewInternalError(err)
	}
	if _, err := r.posts.UpdateMany(ctx, bson.M{"likes": id}, bson.M{"$pull": bson.M{"likes": id}}); err != nil {
		return nil, models.NewInternalError(err)
	}

	if deleted.User.ProfilePicID != "" {
		deleted.Media = append(deleted.Media, models.MediaRef{PublicID: deleted.User.ProfilePicID, ResourceType: string(models.MediaImage)})
	}
	cache.InvalidateUser(ctx, id)
	cache.InvalidatePost(ctx, append(deleted.PostIDs, postIDsOf(liked)...)...)
	return &deleted, nil
}

func (r *mongoUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return r.find(ctx, bson.M{}, findOptions("createdAt", -1, limit, offset))
}

func (r *mongoUserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return r.find(ctx, bson.M{"role": role}, findOptions("createdAt", 1, 0, 0))
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	users := []models.User{}
	cur, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &users); err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *mongoUserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{})
	return n, internal(err)
}

func (r *mongoUserRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"role": role})
	return n, internal(err)
}

type mongoPostRepository struct {
	users *mongo.Collection
	posts *mongo.Collection
}

func (r *mongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	post.Prepare()
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	if _, err := r.posts.InsertOne(ctx, post); err != nil {
		return models.NewInternalError(err)
	}
	return r.hydrate(ctx, []*models.Post{post})
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.NewNotFoundError("Post")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *mongoPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", postsCollection)()

	posts := []*models.Post{}
	cur, err := r.posts.Find(ctx, bson.M{}, findOptions("createdAt", -1, limit, offset))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.hydrate(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *mongoPostRepository) hydrate(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	var authors []models.User
	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": authorIDsOf(posts)}})
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := cur.All(ctx, &authors); err != nil {
		return models.NewInternalError(err)
	}
	attachAuthors(posts, authors)
	return nil
}

func (r *mongoPostRepository) Update(ctx context.Context, post *models.Post) error {
	post.Normalize()
	post.UpdatedAt = time.Now().UTC()
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
		"title":          post.Title,
		"content":        post.Content,
		"mediaUrl":       post.MediaURL,
		"mediaType":      post.MediaType,
		"mediaPublicId":  post.MediaPublicID,
		"isDownloadable": post.IsDownloadable,
		"tags":           post.Tags,
		"updatedAt":      post.UpdatedAt,
	}})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post")
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *mongoPostRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFoundError("Post")
	}
	return nil
}

func (r *mongoPostRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, ids...)
	return res.DeletedCount, nil
}

func (r *mongoPostRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.posts.CountDocuments(ctx, bson.M{})
	return n, internal(err)
}

func (r *mongoPostRepository) CountMediaReferences(ctx context.Context, publicID string) (int64, error) {
	if publicID == "" {
		return 0, nil
	}
	posts, err := r.posts.CountDocuments(ctx, bson.M{"mediaPublicId": publicID})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	avatars, err := r.users.CountDocuments(ctx, bson.M{"profilePicId": publicID})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return posts + avatars, nil
}

func (r *mongoPostRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	n, err := r.posts.CountDocuments(ctx, bson.M{"author": authorID})
	return n, internal(err)
}

// toggleLikePipeline removes userID from likes when present and appends it
// otherwise, stamping updatedAt either way.
// Running it as one update keeps the flip atomic on the document.
func toggleLikePipeline(userID string) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{userID, current}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: current},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
			}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{userID}}}},
		}}}}, {Key: "updatedAt", Value: "$$NOW"}}}},
	}
}

func (r *mongoPostRepository) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, bool, error) {
	defer observability.TrackQuery("toggle_like", postsCollection)()

	var post models.Post
	err := r.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": postID},
		toggleLikePipeline(userID),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, models.NewNotFoundError("Post")
		}
		return nil, false, models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)

	if err := r.hydrate(ctx, []*models.Post{&post}); err != nil {
		return nil, false, err
	}
	return &post, post.LikedBy(userID), nil
}

func (r *mongoPostRepository) AddLike(ctx context.Context, postID, userID string) error {
	return r.updateLikes(ctx, postID, bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (r *mongoPostRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	return r.updateLikes(ctx, postID, bson.M{"$pull": bson.M{"likes": userID}})
}

func (r *mongoPostRepository) updateLikes(ctx context.Context, postID string, update bson.M) error {
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": postID}, update)
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post")
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// FindOrphans compares the distinct author ids against the users collection.
func (r *mongoPostRepository) FindOrphans(ctx context.Context) ([]models.Post, error) {
	raw, err := r.posts.Distinct(ctx, "author", bson.M{})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	authorIDs := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			authorIDs = append(authorIDs, id)
		}
	}

	var present []models.User
	cur, err := r.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": authorIDs}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &present); err != nil {
		return nil, models.NewInternalError(err)
	}

	alive := make(map[string]struct{}, len(present))
	for _, u := range present {
		alive[u.ID] = struct{}{}
	}
	missing := make([]string, 0)
	for _, id := range authorIDs {
		if _, ok := alive[id]; !ok {
			missing = append(missing, id)
		}
	}

	orphans := []models.Post{}
	if len(missing) == 0 {
		return orphans, nil
	}
	cur, err = r.posts.Find(ctx, bson.M{"author": bson.M{"$in": missing}})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &orphans); err != nil {
		return nil, models.NewInternalError(err)
	}
	return orphans, nil
}

type mongoCleanupRepository struct {
	coll *mongo.Collection
}

func (r *mongoCleanupRepository) Enqueue(ctx context.Context, ref models.MediaRef, cause string) error {
	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"publicId": ref.PublicID},
		bson.M{
			"$setOnInsert": bson.M{"_id": models.NewID(), "resourceType": ref.ResourceType, "createdAt": now},
			"$set":         bson.M{"lastError": cause, "updatedAt": now},
			"$inc":         bson.M{"attempts": 1},
		},
		options.Update().SetUpsert(true),
	)
	return internal(err)
}

func (r *mongoCleanupRepository) ListDue(ctx context.Context, limit int) ([]models.PendingMediaDeletion, error) {
	entries := []models.PendingMediaDeletion{}
	cur, err := r.coll.Find(ctx, bson.M{}, findOptions("updatedAt", 1, limit, 0))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (r *mongoCleanupRepository) MarkDone(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return internal(err)
}

func (r *mongoCleanupRepository) MarkFailed(ctx context.Context, id string, cause string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lastError": cause, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
	return internal(err)
}
