// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User is one account record. PasswordHash and RefreshToken never leave the
// server: they are excluded from the JSON projection.
type User struct {
	ID           string       `json:"_id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	FullName     string       `json:"fullName"`
	Avatar       string       `json:"avatar"`
	CoverImage   string       `json:"coverImage"`
	WatchHistory WatchHistory `json:"watchHistory"`
	PasswordHash string       `json:"-"`
	RefreshToken string       `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Sanitized returns a copy of u without secret fields.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	c.RefreshToken = ""
	c.WatchHistory = append(WatchHistory{}, u.WatchHistory...)
	return &c
}

// WatchHistory is the ordered list of watched video ids, stored as JSONB.
type WatchHistory []string

func (w WatchHistory) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(w))
}

// Value implements driver.Valuer.
func (w WatchHistory) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(w))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (w *WatchHistory) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = WatchHistory{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("watch history: unsupported type %T", src)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("watch history: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	*w = ids
	return nil
}
