package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "secret1", false},
		{"Exactly Min Length", "abcdef", false},
		{"Exactly Max Bytes", strings.Repeat("b", 72), false},
		{"Too Short", "abc12", true},
		{"Blank", "       ", true},
		{"Too Long", strings.Repeat("b", 73), true},
		{"Multibyte Over Limit", strings.Repeat("é", 37), true},
		{"Multibyte At Limit", strings.Repeat("é", 36), false},
		{"Unicode Characters", "Ångström", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Short Name", "bob", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Starts Dash", "-user", true},
		{"Ends Underscore", "user_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Short Domain", "a@x.com", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Too Long", "a" + emailAt254, true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBio(t *testing.T) {
	assert.NoError(t, ValidateBio(""))
	assert.NoError(t, ValidateBio(strings.Repeat("x", MaxBioLength)))
	assert.Error(t, ValidateBio(strings.Repeat("x", MaxBioLength+1)))
}

func TestPostRules(t *testing.T) {
	assert.Error(t, ValidateTitle("   "))
	assert.NoError(t, ValidateTitle("Hi"))
	assert.Error(t, ValidateTitle(strings.Repeat("t", MaxTitleLength+1)))
	assert.Error(t, ValidateContent(""))
	assert.NoError(t, ValidateContent("World"))
}

func TestNormalizeTags(t *testing.T) {
	tags, err := NormalizeTags([]string{" go ", "", "fiber", "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "fiber"}, tags)

	tags, err = NormalizeTags(nil)
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)

	_, err = NormalizeTags([]string{strings.Repeat("x", MaxTagLength+1)})
	assert.Error(t, err)

	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}
	_, err = NormalizeTags(many)
	assert.Error(t, err)
}
