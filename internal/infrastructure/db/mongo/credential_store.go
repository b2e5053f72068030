package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/greatway/greatway/internal/core/domain"
)

const (
	usersCollection = "users"
	rolesCollection = "user_roles"

	compensateTimeout = 5 * time.Second
)

// CredentialStore implements ports.CredentialStore on MongoDB. Uniqueness of
// usernames and of (user_id, role) pairs is enforced by indexes.
type CredentialStore struct {
	client *mongo.Client
	users  *mongo.Collection
	roles  *mongo.Collection
}

type mongoUser struct {
	ID           string `bson:"_id"`
	Username     string `bson:"username"`
	PasswordHash string `bson:"password_hash"`
}

type mongoRole struct {
	UserID string `bson:"user_id"`
	Role   string `bson:"role"`
}

// NewCredentialStore wraps db and makes sure the unique indexes exist.
func NewCredentialStore(ctx context.Context, client *mongo.Client, db *mongo.Database) (*CredentialStore, error) {
	s := &CredentialStore{
		client: client,
		users:  db.Collection(usersCollection),
		roles:  db.Collection(rolesCollection),
	}

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create username index: %w", err)
	}
	if _, err := s.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "role", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create role index: %w", err)
	}
	return s, nil
}

// Create inserts the user document and then its role documents. Standalone
// servers have no multi-document transactions, so a failed role insert is
// compensated by deleting the user again.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := mongoUser{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, storeErr("insert user", err)
	}

	if len(user.Roles) > 0 {
		roles := make([]any, len(user.Roles))
		for i, r := range user.Roles {
			roles[i] = mongoRole{UserID: user.ID, Role: string(r)}
		}
		if _, err := s.roles.InsertMany(ctx, roles); err != nil {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
			defer cancel()
			if _, delErr := s.users.DeleteOne(cleanupCtx, bson.M{"_id": user.ID}); delErr != nil {
				return nil, storeErr("insert role", errors.Join(err, fmt.Errorf("remove user: %w", delErr)))
			}
			return nil, storeErr("insert role", err)
		}
	}

	created := toDomainUser(doc)
	created.Roles = append([]domain.Role(nil), user.Roles...)
	return created, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var mu mongoUser
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeErr("find user", err)
	}
	return toDomainUser(mu), nil
}

// AddRole upserts the (user_id, role) pair. A duplicate key error from a
// concurrent grant of the same role means the role is already held.
func (s *CredentialStore) AddRole(ctx context.Context, userID string, role domain.Role) error {
	filter := bson.M{"user_id": userID, "role": string(role)}
	update := bson.M{"$setOnInsert": mongoRole{UserID: userID, Role: string(role)}}

	_, err := s.roles.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return storeErr("add role", err)
	}
	return nil
}

func (s *CredentialStore) Roles(ctx context.Context, userID string) ([]domain.Role, error) {
	cur, err := s.roles.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "role", Value: 1}}))
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	var docs []mongoRole
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list roles", err)
	}

	roles := make([]domain.Role, 0, len(docs))
	for _, d := range docs {
		role, err := domain.ParseRole(d.Role)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *CredentialStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *CredentialStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func toDomainUser(mu mongoUser) *domain.User {
	return &domain.User{
		ID:           mu.ID,
		Username:     mu.Username,
		PasswordHash: mu.PasswordHash,
	}
}

func storeErr(op string, err error) error {
	if mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
