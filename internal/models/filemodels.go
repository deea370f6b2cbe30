package models

import "time"

// SharePermission is the access a public link grants.
type SharePermission string

const (
	PermissionRead       SharePermission = "read"
	PermissionReadUpdate SharePermission = "read_update" // read + update
)

// ShareRequest asks the share manager for a public link on one node.
type ShareRequest struct {
	Owner      string
	FileID     int64
	Name       string
	IsDir      bool
	Permission SharePermission
	Label      string
	Expiration *time.Time
}

// ShareLink is a created public link.
type ShareLink struct {
	ID          string          `json:"id"`
	Token       string          `json:"token"`
	URL         string          `json:"url"`
	Name        string          `json:"name"`
	FileID      int64           `json:"file_id"`
	Permission  SharePermission `json:"permission"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	HasPassword bool            `json:"has_password"`
}

// Share is the stored form of a public link.
type Share struct {
	ID           string          `bson:"_id" json:"id"`
	Token        string          `bson:"token" json:"token"`
	Owner        string          `bson:"owner" json:"owner"`
	FileID       int64           `bson:"file_id" json:"file_id"`
	Name         string          `bson:"name" json:"name"`
	IsDir        bool            `bson:"is_dir" json:"is_dir"`
	Permission   SharePermission `bson:"permission" json:"permission"`
	Label        string          `bson:"label" json:"label"`
	ExpiresAt    *time.Time      `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	PasswordHash []byte          `bson:"password_hash,omitempty" json:"-"`
	CreatedAt    time.Time       `bson:"created_at" json:"created_at"`
}

// StoredFile is one entry of the file index.
type StoredFile struct {
	FileID    int64     `bson:"file_id" json:"file_id"`
	Owner     string    `bson:"owner" json:"owner"`
	Path      string    `bson:"path" json:"path"` // relative to the owner's root
	Name      string    `bson:"name" json:"name"`
	IsDir     bool      `bson:"is_dir" json:"is_dir"`
	Size      int64     `bson:"size" json:"size"`
	IndexedAt time.Time `bson:"indexed_at" json:"indexed_at"`
}
