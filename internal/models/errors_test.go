package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Status(t *testing.T) {
	cases := map[*AppError]int{
		NewBadRequestError("bad"):          http.StatusBadRequest,
		NewConflictError("taken"):          http.StatusBadRequest,
		NewInvalidCredentialsError():       http.StatusBadRequest,
		NewUnauthenticatedError("no"):      http.StatusUnauthorized,
		NewForbiddenError("nope"):          http.StatusForbidden,
		NewNotFoundError("Post"):           http.StatusNotFound,
		NewInternalError(errors.New("db")): http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.Status(), err.Code)
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("load: %w", NewNotFoundError("User"))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}

func TestRespondWithError(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, errors.New("connection refused"))
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewNotFoundError("Post"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body ErrorResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Server error", body.Message)
	assert.Equal(t, "connection refused", body.Error)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	raw, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Post not found", body.Message)
	assert.Empty(t, body.Error)
}

func TestPostDefaults(t *testing.T) {
	p := &Post{Title: "t", Content: "c"}
	p.Prepare()
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, MediaNone, p.MediaType)
	assert.NotNil(t, p.Tags)
	assert.NotNil(t, p.Likes)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"likes":[]`)
	assert.Contains(t, string(raw), `"tags":[]`)
}

func TestMediaTypeResourceType(t *testing.T) {
	assert.Equal(t, "video", MediaVideo.ResourceType())
	assert.Equal(t, "image", MediaImage.ResourceType())
	assert.Equal(t, "image", MediaNone.ResourceType())
	assert.False(t, MediaType("gif").Valid())
}

func TestUserJSONHidesPassword(t *testing.T) {
	u := &User{Username: "alice", Email: " A@X.com ", Password: "$2a$hash"}
	u.Prepare()
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.NotContains(t, string(raw), "password")
}
