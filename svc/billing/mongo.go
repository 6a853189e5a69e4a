package billing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const subscriptionsCollection = "subscriptions"

// MongoSubscriptionStore implements SubscriptionStore on MongoDB.
type MongoSubscriptionStore struct {
	coll *mongo.Collection
}

// NewMongoSubscriptionStore creates the store over the given database.
// Call EnsureIndexes once at startup; the unique index on subscription_id
// is what turns a stale guarded upsert into a detectable duplicate key.
func NewMongoSubscriptionStore(db *mongo.Database) *MongoSubscriptionStore {
	return &MongoSubscriptionStore{coll: db.Collection(subscriptionsCollection)}
}

// EnsureIndexes creates the unique subscription_id index and the compound
// index backing the expiry sweep scan.
func (s *MongoSubscriptionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subscription_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "cancel_at_period_end", Value: 1},
				{Key: "scheduled_cancellation_date", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	})
	return err
}

func (s *MongoSubscriptionStore) Get(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	err := s.coll.FindOne(ctx, bson.M{"subscription_id": subscriptionID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *MongoSubscriptionStore) GetByUserID(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// Upsert applies the guarded full-field overwrite. The filter matches only
// a record whose last_event_at is older than the incoming event, so a stale
// redelivery falls through to the insert path and trips the unique index
// instead of regressing state.
func (s *MongoSubscriptionStore) Upsert(ctx context.Context, sub *Subscription) error {
	now := time.Now().UTC()

	filter := bson.M{
		"subscription_id": sub.SubscriptionID,
		"last_event_at":   bson.M{"$lt": sub.LastEventAt},
	}
	update := bson.M{
		"$set": bson.M{
			"user_id":                     sub.UserID,
			"customer_id":                 sub.CustomerID,
			"status":                      sub.Status,
			"plan_type":                   sub.PlanType,
			"next_bill_amount":            sub.NextBillAmount,
			"currency":                    sub.Currency,
			"next_bill_date":              sub.NextBillDate,
			"last_bill_date":              sub.LastBillDate,
			"cancel_at_period_end":        sub.CancelAtPeriodEnd,
			"scheduled_cancellation_date": sub.ScheduledCancellationDate,
			"canceled_at":                 sub.CanceledAt,
			"current_period":              sub.CurrentPeriod,
			"last_event_at":               sub.LastEventAt,
			"updated_at":                  now,
		},
		"$setOnInsert": bson.M{
			"subscription_id": sub.SubscriptionID,
			"created_at":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated Subscription
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		// The guard excluded the existing record, so the upsert tried to
		// insert a duplicate: the incoming event is stale.
		if mongo.IsDuplicateKeyError(err) {
			return ErrStaleEvent
		}
		return err
	}

	*sub = updated
	return nil
}

func (s *MongoSubscriptionStore) ListExpired(ctx context.Context, now time.Time) ([]Subscription, error) {
	filter := bson.M{
		"status":                      StatusActive,
		"cancel_at_period_end":        true,
		"scheduled_cancellation_date": bson.M{"$lt": now},
	}

	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var subs []Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// MarkCanceled is the sweep's atomic force-transition. The filter re-checks
// the expiry condition so a racing cancellation webhook wins cleanly.
func (s *MongoSubscriptionStore) MarkCanceled(ctx context.Context, subscriptionID string, at time.Time) (*Subscription, error) {
	filter := bson.M{
		"subscription_id":      subscriptionID,
		"status":               StatusActive,
		"cancel_at_period_end": true,
	}
	update := bson.M{
		"$set": bson.M{
			"status":                      StatusCanceled,
			"cancel_at_period_end":        false,
			"scheduled_cancellation_date": nil,
			"canceled_at":                 at,
			"last_event_at":               at,
			"updated_at":                  at,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Subscription
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &updated, nil
}
