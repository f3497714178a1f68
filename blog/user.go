package blog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used by SetPassword.
var PasswordCost = bcrypt.DefaultCost

type User struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	Hash          []byte         `json:"hash"`
	Created       time.Time      `json:"created"`
	Updated       time.Time      `json:"updated"`
	Notifications []Notification `json:"notifications"`
}

func NewUser(username, email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		Created:       now,
		Updated:       now,
		Notifications: make([]Notification, 0),
	}
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	u.Hash = hash
	u.Updated = time.Now().UTC()
	return nil
}

func (u *User) PasswordMatches(input string) (bool, error) {
	if len(u.Hash) == 0 {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword(u.Hash, []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// Sanitize drops the password hash before a user is handed to templates.
func (u *User) Sanitize() {
	u.Hash = nil
}

// Notification is something that happened to a user's account or posts.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	NotifyFollow  = "follow"
	NotifyComment = "comment"
	NotifyLike    = "like"
)

func NewNotification(userID, from, kind, message, link string) Notification {
	return Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		From:      from,
		Kind:      kind,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}
}
