package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxTagNameLength = 64

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// User is a linked provider account.
//
// RefreshToken never leaves the service, so it is excluded from JSON.
type User struct {
	ID              int64      `json:"id"`
	ExternalID      string     `json:"external_id"`
	Email           string     `json:"email"`
	DisplayName     *string    `json:"display_name,omitempty"`
	AccessToken     *string    `json:"access_token,omitempty"`
	RefreshToken    *string    `json:"-"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasRefreshToken reports whether a non-empty refresh token is stored.
func (u *User) HasRefreshToken() bool {
	return u.RefreshToken != nil && *u.RefreshToken != ""
}

// TokenExpired reports whether the access token expires within leeway of now.
// A user without an expiry is treated as expired.
func (u *User) TokenExpired(now time.Time, leeway time.Duration) bool {
	if u.TokenExpiresAt == nil {
		return true
	}
	return !now.Add(leeway).Before(*u.TokenExpiresAt)
}

// Tag is a user-owned label.
type Tag struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate trims the name and checks name and colour.
func (t *Tag) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("tag name is required")
	}
	if utf8.RuneCountInString(t.Name) > MaxTagNameLength {
		return fmt.Errorf("tag name must be at most %d characters", MaxTagNameLength)
	}
	if t.Color != nil {
		if *t.Color == "" {
			t.Color = nil
		} else if !colorPattern.MatchString(*t.Color) {
			return fmt.Errorf("tag color must look like #rgb or #rrggbb, got %q", *t.Color)
		}
	}
	return nil
}

// SongTag links an external track id to a tag. UserID always equals the tag's owner.
type SongTag struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TrackID   string    `json:"song_id"`
	TagID     int64     `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair is the token endpoint response.
//
// RefreshToken is empty when the provider did not issue or rotate one.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ExpiresAt returns the absolute expiry of the access token relative to now.
func (p *TokenPair) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(p.ExpiresIn) * time.Second)
}

// Profile is the provider's account profile.
type Profile struct {
	ID          string  `json:"id"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Images      []Image `json:"images"`
}

// Image is a profile picture rendition.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// PrimaryImageURL returns the first image url, or nil when there are none.
func (p *Profile) PrimaryImageURL() *string {
	if len(p.Images) == 0 || p.Images[0].URL == "" {
		return nil
	}
	url := p.Images[0].URL
	return &url
}

// EmailOrEmpty returns the profile email, or "" when the provider withheld it.
func (p *Profile) EmailOrEmpty() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// TaggedTracks is a tag and the tracks carrying it.
type TaggedTracks struct {
	Tag      Tag      `json:"tag"`
	TrackIDs []string `json:"song_ids"`
}

// TagExport is a snapshot of one user's tags.
type TagExport struct {
	UserID     int64          `json:"user_id"`
	ExternalID string         `json:"external_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Tags       []TaggedTracks `json:"tags"`
}

// TrackCount returns the number of associations in the export.
func (e *TagExport) TrackCount() int {
	n := 0
	for _, t := range e.Tags {
		n += len(t.TrackIDs)
	}
	return n
}
