package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"

	RoleUser  = "user"
	RoleAdmin = "admin"

	MinPasswordLength = 8
)

type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string        `bson:"username" json:"username" patch:"mutable"`
	DisplayName  string        `bson:"displayName,omitempty" json:"displayName,omitempty" patch:"mutable"`
	Roles        []string      `bson:"roles" json:"roles" patch:"mutable"`
	PasswordHash string        `bson:"passwordHash,omitempty" json:"-"`
	Provider     string        `bson:"provider" json:"provider"`
	ExternalID   string        `bson:"externalId,omitempty" json:"externalId,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// UserInput carries a registration request. Password is plaintext and must
// be hashed before anything is stored.
type UserInput struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
	DisplayName string   `json:"displayName"`
}

func (in UserInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return invalid("username", "is required")
	}
	return ValidatePassword(in.Password)
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// NewLocalUser builds a locally authenticated user from a validated input
// and an already computed password hash.
func NewLocalUser(in UserInput, passwordHash string, now time.Time) *User {
	user := &User{
		Username:     strings.TrimSpace(in.Username),
		DisplayName:  in.DisplayName,
		Roles:        in.Roles,
		PasswordHash: passwordHash,
		Provider:     ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.Normalize()
	return user
}

// NewExternalUser builds a user that signs in through an identity provider
// and therefore has no password.
func NewExternalUser(provider, externalID, displayName string, now time.Time) *User {
	user := &User{
		Username:    provider + ":" + externalID,
		DisplayName: displayName,
		Provider:    provider,
		ExternalID:  externalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user.Normalize()
	return user
}

// Normalize gives a user at least the default role and removes duplicate
// roles, keeping the first occurrence.
func (u *User) Normalize() {
	u.Roles = NormalizeRoles(u.Roles)
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
}

func NormalizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		out = append(out, RoleUser)
	}
	return out
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DecodeUserPatch is the user counterpart of DecodeQuizPatch. The password
// key is not handled here; callers hash it separately.
func DecodeUserPatch(patch map[string]any) (bson.D, error) {
	if len(patch) == 0 {
		return nil, invalid("patch", "is empty")
	}

	set, err := UserPatchSchema().Decode(patch)
	if err != nil {
		return nil, err
	}

	for i, e := range set {
		switch e.Key {
		case "username":
			s := strings.TrimSpace(e.Value.(string))
			if s == "" {
				return nil, invalid(e.Key, "is required")
			}
			set[i].Value = s
		case "roles":
			set[i].Value = NormalizeRoles(e.Value.([]string))
		}
	}
	return set, nil
}
