package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/versecraft/api/svc/billing"
)

const usersCollection = "users"

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates the store over the given database. Call
// EnsureIndexes once at startup.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index plus the sparse lookup
// indexes for social sign-in, billing resolution, and token lookups.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "billing_customer_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, u *User) error {
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("user: insert: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.findOne(ctx, bson.M{"google_id": googleID})
}

func (s *MongoStore) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"verification_token": token})
}

func (s *MongoStore) GetByResetToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"reset_token": token})
}

func (s *MongoStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"verification_token": ""},
	})
}

func (s *MongoStore) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"reset_token":        token,
			"reset_token_expiry": expiry,
			"updated_at":         time.Now().UTC(),
		},
	})
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_token": "", "reset_token_expiry": ""},
	})
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}

	var u User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user: update profile: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) SetAvatarURL(ctx context.Context, id, url string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{"avatar_url": url, "updated_at": time.Now().UTC()},
	})
}

func (s *MongoStore) LinkGoogleID(ctx context.Context, id, googleID string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{"google_id": googleID, "updated_at": time.Now().UTC()},
	})
}

func (s *MongoStore) SetBillingCustomerID(ctx context.Context, id, customerID string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{"billing_customer_id": customerID, "updated_at": time.Now().UTC()},
	})
}

// DeductPoemCredit decrements the balance in a single conditional update,
// so concurrent generations can never spend the same credit twice. The
// unlimited sentinel is checked separately because a blind $inc would
// corrupt it.
func (s *MongoStore) DeductPoemCredit(ctx context.Context, id string) (int, error) {
	var u User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "poem_credits": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"poem_credits": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err == nil {
		return u.PoemCredits, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("user: deduct credit: %w", err)
	}

	// No positive balance matched: either unlimited, exhausted, or missing.
	existing, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	if existing.HasUnlimitedCredits() {
		return billing.UnlimitedCredits, nil
	}
	return 0, ErrNoCreditsRemaining
}

func (s *MongoStore) FindIDByCustomerID(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", billing.ErrUserNotFound
	}
	var u User
	err := s.coll.FindOne(ctx,
		bson.M{"billing_customer_id": customerID},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", billing.ErrUserNotFound
		}
		return "", fmt.Errorf("user: find by customer id: %w", err)
	}
	return u.ID, nil
}

func (s *MongoStore) Exists(ctx context.Context, userID string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("user: exists: %w", err)
	}
	return count > 0, nil
}

// SetEntitlement overwrites the entitlement fields in one update. Full
// overwrite keeps webhook replays idempotent; there is nothing to
// read-modify-write.
func (s *MongoStore) SetEntitlement(ctx context.Context, userID string, ent billing.Entitlement) error {
	set := bson.M{
		"plan":         ent.Tier,
		"poem_credits": ent.PoemCredits,
		"updated_at":   time.Now().UTC(),
	}
	if ent.CustomerID != "" {
		set["billing_customer_id"] = ent.CustomerID
	}
	set["billing_subscription_id"] = ent.SubscriptionID

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("user: set entitlement: %w", err)
	}
	if res.MatchedCount == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user: find: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("user: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
