package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"devsnippet/internal/auth"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written data set loaded from YAML.
//
//	users:
//	  - username: alice
//	    email: alice@example.com
//	    password: secret1
//	    role: admin
//	posts:
//	  - author: alice
//	    title: Hello
//	    content: First snippet
//	    tags: [go]
//	    likes: [bob]
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Posts []PostFixture `yaml:"posts"`
}

// UserFixture describes one account.
type UserFixture struct {
	Username string      `yaml:"username"`
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
	Bio      string      `yaml:"bio"`
}

// PostFixture describes one post; Author and Likes refer to usernames.
type PostFixture struct {
	Author       string           `yaml:"author"`
	Title        string           `yaml:"title"`
	Content      string           `yaml:"content"`
	MediaURL     string           `yaml:"mediaUrl"`
	MediaType    models.MediaType `yaml:"mediaType"`
	Downloadable *bool            `yaml:"downloadable"`
	Tags         []string         `yaml:"tags"`
	Likes        []string         `yaml:"likes"`
}

// LoadFixtures reads and validates a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes YAML and checks it against the same rules the API enforces.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixtures) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if err := validation.ValidateEmail(u.Email); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if err := validation.ValidatePassword(u.Password); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if u.Role != "" && !u.Role.Valid() {
			return fmt.Errorf("users[%d]: invalid role %q", i, u.Role)
		}
		known[u.Username] = true
	}

	for i, p := range fx.Posts {
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("posts[%d]: title and content are required", i)
		}
		if err := validation.ValidateTitleLength(p.Title); err != nil {
			return fmt.Errorf("posts[%d]: %w", i, err)
		}
		if p.MediaType != "" && !p.MediaType.Valid() {
			return fmt.Errorf("posts[%d]: invalid media type %q", i, p.MediaType)
		}
		if _, err := validation.NormalizeTags(p.Tags); err != nil {
			return fmt.Errorf("posts[%d]: %w", i, err)
		}
		if !known[p.Author] {
			return fmt.Errorf("posts[%d]: unknown author %q", i, p.Author)
		}
		for _, liker := range p.Likes {
			if !known[liker] {
				return fmt.Errorf("posts[%d]: unknown liker %q", i, liker)
			}
		}
	}
	return nil
}

// Apply writes the fixtures. Users that already exist by username are reused,
// so re-applying a file only adds its posts again.
func (fx *Fixtures) Apply(ctx context.Context, store *repository.Store) (*Summary, error) {
	summary := &Summary{}
	byName := make(map[string]*models.User, len(fx.Users))

	for _, uf := range fx.Users {
		existing, err := store.Users.GetByUsername(ctx, uf.Username)
		if err != nil {
			return summary, err
		}
		if existing != nil {
			byName[uf.Username] = existing
			continue
		}

		hash, err := auth.HashPassword(uf.Password)
		if err != nil {
			return summary, fmt.Errorf("hash password for %s: %w", uf.Username, err)
		}
		u := &models.User{
			Username: uf.Username,
			Email:    uf.Email,
			Password: hash,
			Role:     uf.Role,
			Bio:      uf.Bio,
		}
		if err := store.Users.Create(ctx, u); err != nil {
			return summary, fmt.Errorf("create user %s: %w", uf.Username, err)
		}
		byName[uf.Username] = u
		summary.Users++
	}

	for _, pf := range fx.Posts {
		tags, _ := validation.NormalizeTags(pf.Tags)
		downloadable := true
		if pf.Downloadable != nil {
			downloadable = *pf.Downloadable
		}
		mediaType := pf.MediaType
		if mediaType == "" {
			mediaType = models.MediaNone
		}

		post := &models.Post{
			Title:          strings.TrimSpace(pf.Title),
			Content:        pf.Content,
			AuthorID:       byName[pf.Author].ID,
			MediaURL:       pf.MediaURL,
			MediaType:      mediaType,
			IsDownloadable: downloadable,
			Tags:           tags,
		}
		if err := store.Posts.Create(ctx, post); err != nil {
			return summary, fmt.Errorf("create post %q: %w", pf.Title, err)
		}
		summary.Posts++

		for _, liker := range pf.Likes {
			if err := store.Posts.AddLike(ctx, post.ID, byName[liker].ID); err != nil {
				return summary, fmt.Errorf("like post %q: %w", pf.Title, err)
			}
			summary.Likes++
		}
	}

	return summary, nil
}
