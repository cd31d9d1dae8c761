// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/straywatch/internal/app/system/normalize"
	"github.com/dalemusser/straywatch/internal/app/system/status"
	"github.com/dalemusser/straywatch/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("an account with this e-mail already exists")
	ErrStatusChanged  = errors.New("user status changed concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create inserts a new account. Role decides the initial status unless the
// caller set one explicitly.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.FullNameCI = text.Fold(u.FullName)
	if u.Status == "" {
		u.Status = status.InitialAccountStatus(u.Role)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail looks up a user by case-insensitive e-mail.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// SetStatus writes the new account status unconditionally and refreshes
// UpdatedAt.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, newStatus string) (models.User, error) {
	return s.findOneAndSet(ctx, bson.M{"_id": id}, newStatus)
}

// SetStatusFrom writes the new status only if the current status still
// matches from. Returns ErrStatusChanged when another writer got there
// first.
func (s *Store) SetStatusFrom(ctx context.Context, id primitive.ObjectID, from, to string) (models.User, error) {
	u, err := s.findOneAndSet(ctx, bson.M{"_id": id, "status": from}, to)
	if err == ErrNotFound {
		// Distinguish a missing user from a lost race.
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return models.User{}, ErrStatusChanged
		}
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) findOneAndSet(ctx context.Context, filter bson.M, newStatus string) (models.User, error) {
	update := bson.M{"$set": bson.M{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile modifies the mutable profile fields. Empty values clear
// the optional fields; the name is only replaced when non-empty.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, phone, address string) (models.User, error) {
	set := bson.M{
		"phone":      phone,
		"address":    address,
		"updated_at": time.Now().UTC(),
	}
	if fullName != "" {
		set["full_name"] = fullName
		set["full_name_ci"] = text.Fold(fullName)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

// Delete removes an account permanently. Returns the number of documents
// deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByRoleAndStatus returns accounts matching role and status, newest
// first. Used by the admin pending-items view.
func (s *Store) ListByRoleAndStatus(ctx context.Context, role, accountStatus string) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"role": role, "status": accountStatus}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureIndexes creates the unique e-mail index and the role/status index
// the admin view queries against.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}
