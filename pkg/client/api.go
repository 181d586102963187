package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

type messageResponse struct {
	Message string `json:"message"`
}

type avatarResponse struct {
	URL  string `json:"url"`
	User *User  `json:"user"`
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var res AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/register", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	var res AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/login", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout ends the server-side cookie session.
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", nil, &messageResponse{})
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes the caller's username and/or bio.
func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*User, error) {
	var u User
	if err := c.send(ctx, http.MethodPut, "/auth/profile", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetAvatar points the caller's avatar at an uploaded asset.
func (c *Client) SetAvatar(ctx context.Context, assetURL, publicID string) (*User, error) {
	var res avatarResponse
	in := map[string]string{"url": assetURL, "publicId": publicID}
	if err := c.send(ctx, http.MethodPost, "/auth/upload-avatar", in, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

// PublicProfile returns the public view of username.
func (c *Client) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	var p PublicProfile
	if err := c.get(ctx, "/auth/user/"+url.PathEscape(username), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns posts newest first. A zero limit returns all of them.
func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]Post, error) {
	var posts []Post
	if err := c.get(ctx, "/posts"+pageQuery(limit, offset), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost fetches one post.
func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := c.get(ctx, "/posts/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost publishes a post as the caller.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	var p Post
	if err := c.send(ctx, http.MethodPost, "/posts", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost applies a partial update.
func (c *Client) UpdatePost(ctx context.Context, id string, in UpdatePostInput) (*Post, error) {
	var p Post
	if err := c.send(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost removes a post and its media.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, &messageResponse{})
}

// ToggleLike likes or unlikes a post and returns its new state.
func (c *Client) ToggleLike(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := c.send(ctx, http.MethodPut, "/posts/"+url.PathEscape(id)+"/like", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UploadMedia sends an image or video to the media delegate.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, r io.Reader) (*Asset, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var asset Asset
	if err := c.once(ctx, http.MethodPost, "/media/upload", &buf, w.FormDataContentType(), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// AdminDashboard returns platform counters and recent activity.
func (c *Client) AdminDashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.get(ctx, "/admin/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AdminListUsers pages through every account.
func (c *Client) AdminListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var users []User
	if err := c.get(ctx, "/admin/users"+pageQuery(limit, offset), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AdminGetUser returns an account with its post count.
func (c *Client) AdminGetUser(ctx context.Context, id string) (*UserDetail, error) {
	var d UserDetail
	if err := c.get(ctx, "/admin/users/"+url.PathEscape(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AdminUpdateUser edits another account.
func (c *Client) AdminUpdateUser(ctx context.Context, id string, in AdminUpdateUserInput) (*User, error) {
	var u User
	if err := c.send(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AdminDeleteUser removes an account with all of its posts.
func (c *Client) AdminDeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, &messageResponse{})
}
