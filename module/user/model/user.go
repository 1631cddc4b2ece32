package model

import "time"

const UserTableName = "users"

// User is an account record. The realtime core never loads these; it refers
// to users by id only. Name and email travel inside the credential claims.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

const (
	UserFieldID    = "_id"
	UserFieldName  = "name"
	UserFieldEmail = "email"
)

func (*User) TableName() string { return UserTableName }

// PublicUser is the presentation shape for user listings; isOnline is filled
// from the presence registry, never from the store.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsOnline bool   `json:"isOnline"`
}

func (u *User) Public(online bool) PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, IsOnline: online}
}
