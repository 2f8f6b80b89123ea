// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	TokenVersion int       `db:"token_version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DeletionSummary reports how many rows each step of a user deletion
// removed.
type DeletionSummary struct {
	UserID        string `json:"user_id"`
	ClaimPhotos   int64  `json:"claim_photos"`
	ClaimUpdates  int64  `json:"claim_updates"`
	Claims        int64  `json:"claims"`
	Payments      int64  `json:"payments"`
	Beneficiaries int64  `json:"beneficiaries"`
	Policies      int64  `json:"policies"`
	RefreshTokens int64  `json:"refresh_tokens"`
}

func newDeletionSummary(userID string, c core.DeletionCounts) *DeletionSummary {
	return &DeletionSummary{
		UserID:        userID,
		ClaimPhotos:   c["claim_photos"],
		ClaimUpdates:  c["claim_updates"],
		Claims:        c["claims"],
		Payments:      c["payments"],
		Beneficiaries: c["beneficiaries"],
		Policies:      c["policies"],
		RefreshTokens: c["refresh_tokens"],
	}
}
