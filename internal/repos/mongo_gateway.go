package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoGateway maps each top-level path segment onto a collection and the
// record key onto _id.
type MongoGateway struct{ db *mongo.Database }

func NewMongoGateway(db *mongo.Database) *MongoGateway { return &MongoGateway{db: db} }

// ConnectMongo dials and pings the server.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

func (g *MongoGateway) Get(ctx context.Context, path string, dest any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}
	var doc bson.M
	err = g.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get "+path, err)
	}
	body, err := docJSON(doc)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (g *MongoGateway) Set(ctx context.Context, path string, value any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	doc, err := toDoc(key, value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = g.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return unavailable("set "+path, err)
	}
	return nil
}

func (g *MongoGateway) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	set, err := setFields(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	res, err := g.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set})
	if err != nil {
		return unavailable("update "+path, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	return nil
}

func (g *MongoGateway) Remove(ctx context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := g.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return unavailable("remove "+path, err)
	}
	return nil
}

func (g *MongoGateway) QueryByField(ctx context.Context, collection, field string, value any) ([]Record, error) {
	return g.find(ctx, collection, fieldFilter(field, value))
}

func (g *MongoGateway) List(ctx context.Context, collection string) ([]Record, error) {
	return g.find(ctx, collection, bson.M{})
}

func (g *MongoGateway) find(ctx context.Context, collection string, filter bson.M) ([]Record, error) {
	cur, err := g.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, unavailable("query "+collection, err)
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		key, _ := doc["_id"].(string)
		body, err := docJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
		}
		out = append(out, Record{Key: key, Body: body})
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("query "+collection, err)
	}
	return out, nil
}

// toDoc stores value the way its JSON encoding reads, keyed by _id.
func toDoc(key string, value any) (bson.M, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		return nil, err
	}
	doc["_id"] = key
	return doc, nil
}

// setFields builds a $set document. Values round-trip through JSON so
// stored shapes match Set; dotted keys address nested fields.
func setFields(fields map[string]any) (bson.M, error) {
	set := bson.M{}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		var wrapped bson.M
		if err := bson.UnmarshalExtJSON([]byte(`{"v":`+string(raw)+`}`), false, &wrapped); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		set[k] = wrapped["v"]
	}
	return set, nil
}

// fieldFilter matches a top-level or dotted field. Booleans stay booleans.
func fieldFilter(field string, value any) bson.M {
	return bson.M{field: value}
}

func docJSON(doc bson.M) ([]byte, error) {
	delete(doc, "_id")
	return bson.MarshalExtJSON(doc, false, false)
}
