package poem

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const poemsCollection = "poems"

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(poemsCollection)}
}

// EnsureIndexes backs the per-user listing and the type/language filters.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "poem_type", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "language", Value: 1}},
		},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, p *Poem) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("poem: insert: %w", err)
	}
	return nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Poem, int64, error) {
	opts.Normalize()

	filter := bson.M{"user_id": userID}
	if opts.Type != "" {
		filter["poem_type"] = opts.Type
	}
	if opts.Language != "" {
		filter["language"] = opts.Language
	}

	sortOrder := 1
	if opts.SortDesc {
		sortOrder = -1
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: sortOrder}}).
		SetSkip(int64((opts.Page-1)*opts.PerPage)).
		SetLimit(int64(opts.PerPage)))
	if err != nil {
		return nil, 0, fmt.Errorf("poem: list: %w", err)
	}

	var poems []Poem
	if err := cursor.All(ctx, &poems); err != nil {
		return nil, 0, fmt.Errorf("poem: decode list: %w", err)
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("poem: count: %w", err)
	}
	return poems, total, nil
}

func (s *MongoStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("poem: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPoemNotFound
	}
	return nil
}

// Usage runs one aggregation with two facets: counts per calendar day and
// counts per poem type.
func (s *MongoStore) Usage(ctx context.Context, userID string, from, to time.Time) (*Usage, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": from, "$lte": to},
		}}},
		{{Key: "$facet", Value: bson.M{
			"byDate": bson.A{
				bson.M{"$group": bson.M{
					"_id": bson.M{"$dateToString": bson.M{
						"format": "%Y-%m-%d",
						"date":   "$created_at",
					}},
					"count": bson.M{"$sum": 1},
				}},
			},
			"byType": bson.A{
				bson.M{"$group": bson.M{
					"_id":   "$poem_type",
					"count": bson.M{"$sum": 1},
				}},
			},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("poem: usage aggregation: %w", err)
	}

	var results []struct {
		ByDate []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		} `bson:"byDate"`
		ByType []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		} `bson:"byType"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("poem: decode usage: %w", err)
	}

	usage := &Usage{
		ByDate: make(map[string]int64),
		ByType: make(map[string]int64),
	}
	if len(results) == 0 {
		return usage, nil
	}
	for _, bucket := range results[0].ByDate {
		usage.ByDate[bucket.ID] = bucket.Count
		usage.Total += bucket.Count
	}
	for _, bucket := range results[0].ByType {
		usage.ByType[bucket.ID] = bucket.Count
	}
	return usage, nil
}
