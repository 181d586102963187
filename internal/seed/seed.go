package seed

import (
	"context"
	"fmt"
	"log/slog"

	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// MaxLikes caps how many likes each generated post receives.
	MaxLikes int
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
	Seed    int64
}

// Summary counts what a seeding run wrote.
type Summary struct {
	Users int `json:"users" yaml:"users"`
	Posts int `json:"posts" yaml:"posts"`
	Likes int `json:"likes" yaml:"likes"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d likes", s.Users, s.Posts, s.Likes)
}

// Run generates NumUsers users and NumPosts posts spread across them,
// then has random users like each post.
func Run(ctx context.Context, store *repository.Store, opts Options) (*Summary, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("seed needs at least one user")
	}
	if opts.MaxLikes <= 0 {
		opts.MaxLikes = 5
	}

	f, err := NewFactory(store, opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return summary, fmt.Errorf("create user %d: %w", i+1, err)
		}
		users = append(users, u)
		summary.Users++
	}

	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.fake.Number(0, len(users)-1)]
		post, err := f.CreatePost(ctx, author)
		if err != nil {
			return summary, fmt.Errorf("create post %d: %w", i+1, err)
		}
		summary.Posts++

		likes := f.fake.Number(0, min(opts.MaxLikes, len(users)))
		for _, liker := range f.pick(users, likes) {
			if err := store.Posts.AddLike(ctx, post.ID, liker.ID); err != nil {
				return summary, fmt.Errorf("like post %s: %w", post.ID, err)
			}
			summary.Likes++
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("likes", summary.Likes),
	)
	return summary, nil
}
