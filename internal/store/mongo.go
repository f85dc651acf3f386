package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OpenMongo connects to MongoDB and returns a Store backed by it plus a
// close function for shutdown.
func OpenMongo(ctx context.Context, uri, dbName string) (*Store, func(context.Context) error, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(pingCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	db := client.Database(dbName)
	s := &Store{
		Users:         &mongoUsers{c: db.Collection("users")},
		Rides:         &mongoRides{c: db.Collection("rides")},
		Bookings:      &mongoBookings{c: db.Collection("bookings")},
		SharedRides:   &mongoSharedRides{c: db.Collection("sharedRides")},
		Vehicles:      &mongoVehicles{c: db.Collection("vehicles")},
		Payments:      &mongoPayments{c: db.Collection("payments")},
		Reviews:       &mongoReviews{c: db.Collection("reviews")},
		Rates:         &mongoRates{c: db.Collection("settings")},
		PersonalRides: &mongoPersonalRides{c: db.Collection("personalbooking")},
	}
	return s, client.Disconnect, nil
}

func mapMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceByID(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	res, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, c *mongo.Collection, id string) error {
	res, err := c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func withLimit(opts *options.FindOptions, limit int) *options.FindOptions {
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

var (
	sortCreatedDesc = bson.D{{Key: "createdAt", Value: -1}}
	sortCreatedAsc  = bson.D{{Key: "createdAt", Value: 1}}
	sortPostedDesc  = bson.D{{Key: "postedDate", Value: -1}}
)
