// Package seed provides helpers to create demo data for the application
// store. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devsnippet/internal/auth"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is the plain-text password of every generated user.
const DefaultPassword = "password123"

var snippetTags = []string{"go", "javascript", "python", "rust", "sql", "css", "devops", "testing", "react", "linux"}

// Factory builds domain entities and persists them through the repositories.
// It is a thin helper used by Run and tests.
type Factory struct {
	store *repository.Store
	opts  Options
	fake  *gofakeit.Faker
	hash  string
	seq   int
}

// NewFactory creates a Factory bound to store. A zero Options.Seed picks a random seed.
func NewFactory(store *repository.Store, opts Options) (*Factory, error) {
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{
		store: store,
		opts:  opts,
		fake:  gofakeit.New(opts.Seed),
		hash:  hash,
	}, nil
}

// BuildUser constructs a user with a valid, unique username without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.seq++
	user := &models.User{
		Username: f.username(),
		Bio:      f.fake.HackerPhrase(),
		Password: f.hash,
		Role:     models.RoleUser,
	}
	user.Email = user.Username + "@" + f.fake.DomainName()

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author with a realistic created_at spread.
// Roughly a third of posts carry an image.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:          strings.TrimSuffix(f.fake.Sentence(5), "."),
		Content:        f.fake.Paragraph(1, 3, 12, "\n"),
		AuthorID:       author.ID,
		MediaType:      models.MediaNone,
		IsDownloadable: f.fake.Bool(),
		Tags:           f.tags(),
		CreatedAt:      f.createdAt(),
	}
	if f.fake.Number(0, 2) == 0 {
		id := f.fake.UUID()
		post.MediaType = models.MediaImage
		post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", id)
	}
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists a post by author.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.store.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// username yields lowercase [a-z0-9_] names of at most 30 characters.
func (f *Factory) username() string {
	var b strings.Builder
	for _, r := range strings.ToLower(f.fake.Username()) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) < 3 {
		base = "dev" + base
	}
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, f.seq)
}

// pick returns n distinct users via a partial Fisher-Yates shuffle.
func (f *Factory) pick(users []*models.User, n int) []*models.User {
	pool := append([]*models.User(nil), users...)
	n = min(n, len(pool))
	for i := 0; i < n; i++ {
		j := f.fake.Number(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

func (f *Factory) tags() []string {
	n := f.fake.Number(0, 3)
	seen := make(map[string]struct{}, n)
	tags := make([]string, 0, n)
	for len(tags) < n {
		tag := snippetTags[f.fake.Number(0, len(snippetTags)-1)]
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.fake.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back).UTC()
}
