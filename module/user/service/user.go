package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	usermodel "ChatLink/module/user/model"
	"ChatLink/tools/errs"
	"ChatLink/tools/ids"
	jwtsec "ChatLink/tools/security"
)

// Service owns account records and credential minting. The realtime core
// never calls it; it backs the HTTP auth and user-listing routes.
type Service struct {
	UserColl *mongo.Collection
	jwtOpts  jwtsec.Options
}

func NewService(db *mongo.Database, jwtOpts jwtsec.Options) *Service {
	u := usermodel.User{}
	return &Service{UserColl: db.Collection(u.TableName()), jwtOpts: jwtOpts}
}

func (s *Service) EnsureIndexes(ctx context.Context) error {
	_, err := s.UserColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: usermodel.UserFieldEmail, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create user email index")
}

// Register creates an account and mints its first credential.
func (s *Service) Register(ctx context.Context, name, email, password string) (*usermodel.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, "", errs.ErrBadRequest.WithDetail("name, email and password are required")
	}

	var existing usermodel.User
	err := s.UserColl.FindOne(ctx, bson.M{usermodel.UserFieldEmail: email}).Decode(&existing)
	if err == nil {
		return nil, "", errs.ErrConflict.WithDetail("User already exists")
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", errors.Wrap(err, "lookup user by email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	user := &usermodel.User{
		ID:           ids.GenerateString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if _, err := s.UserColl.InsertOne(ctx, user); err != nil {
		return nil, "", errors.Wrap(err, "insert user")
	}

	token, err := s.mint(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and mints a fresh bearer credential. Wrong
// email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*usermodel.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user usermodel.User
	err := s.UserColl.FindOne(ctx, bson.M{usermodel.UserFieldEmail: email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", errs.NewCodeError(errs.CodeInvalidPassword, "Invalid credentials")
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "lookup user by email")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", errs.NewCodeError(errs.CodeInvalidPassword, "Invalid credentials")
	}

	token, err := s.mint(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*usermodel.User, error) {
	var user usermodel.User
	err := s.UserColl.FindOne(ctx, bson.M{usermodel.UserFieldID: id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("user " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	return &user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user usermodel.User
	err := s.UserColl.FindOne(ctx, bson.M{usermodel.UserFieldEmail: email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("user " + email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user by email")
	}
	return &user, nil
}

// ListOthers returns every user except self, for the contact sidebar.
func (s *Service) ListOthers(ctx context.Context, selfID string) ([]*usermodel.User, error) {
	cur, err := s.UserColl.Find(ctx, bson.M{usermodel.UserFieldID: bson.M{"$ne": selfID}})
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return out, nil
}

func (s *Service) mint(user *usermodel.User) (string, error) {
	token, _, err := jwtsec.Generate(s.jwtOpts, jwtsec.Identity{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
	if err != nil {
		return "", errors.Wrap(err, "mint credential")
	}
	return token, nil
}

// ===== demo seed =====

type demoUser struct {
	Name     string
	Email    string
	Password string
}

var demoUsers = []demoUser{
	{Name: "John Doe", Email: "john@example.com", Password: "password123"},
	{Name: "Jane Smith", Email: "jane@example.com", Password: "password123"},
	{Name: "Bob Johnson", Email: "bob@example.com", Password: "password123"},
}

// Seed inserts the demo accounts when the collection is empty. Returns the
// number of users inserted (0 when already seeded).
func (s *Service) Seed(ctx context.Context) (int, error) {
	count, err := s.UserColl.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	if count > 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(demoUsers))
	now := time.Now()
	for _, d := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, errors.Wrap(err, "hash demo password")
		}
		docs = append(docs, &usermodel.User{
			ID:           ids.GenerateString(),
			Name:         d.Name,
			Email:        d.Email,
			PasswordHash: string(hash),
			CreatedAt:    now,
		})
	}
	if _, err := s.UserColl.InsertMany(ctx, docs); err != nil {
		return 0, errors.Wrap(err, "insert demo users")
	}
	return len(docs), nil
}
