package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/taxi-backend/internal/models"
)

type mongoUsers struct{ c *mongo.Collection }

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	_, err := r.c.InsertOne(ctx, u)
	return err
}

func (r *mongoUsers) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapMongoErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, bson.M{"phoneNumber": phone}).Decode(&u); err != nil {
		return nil, mapMongoErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) Put(ctx context.Context, u *models.User) error {
	return replaceByID(ctx, r.c, u.ID, u)
}

func (r *mongoUsers) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

func (r *mongoUsers) ListDrivers(ctx context.Context, f DriverFilter) ([]*models.User, error) {
	filter := bson.M{"role": models.RoleDriver}
	if f.Online != nil {
		filter["isOnline"] = *f.Online
	}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	return findAll[models.User](ctx, r.c, filter, withLimit(options.Find(), f.Limit))
}

type mongoRides struct{ c *mongo.Collection }

func (r *mongoRides) Create(ctx context.Context, ride *models.Ride) error {
	_, err := r.c.InsertOne(ctx, ride)
	return err
}

func (r *mongoRides) Get(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ride); err != nil {
		return nil, mapMongoErr(err)
	}
	return &ride, nil
}

func (r *mongoRides) List(ctx context.Context, f RideFilter) ([]*models.Ride, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.RideType != "" {
		filter["rideType"] = f.RideType
	}
	opts := withLimit(options.Find().SetSort(sortCreatedDesc), f.Limit)
	return findAll[models.Ride](ctx, r.c, filter, opts)
}

func (r *mongoRides) Pending(ctx context.Context) ([]*models.Ride, error) {
	opts := options.Find().SetSort(sortCreatedAsc)
	return findAll[models.Ride](ctx, r.c, bson.M{"status": models.RideStatusPending}, opts)
}

func (r *mongoRides) OpenShared(ctx context.Context) ([]*models.Ride, error) {
	filter := bson.M{
		"rideType": models.RideTypeShared,
		"status":   bson.M{"$in": []models.RideStatus{models.RideStatusPending, models.RideStatusAccepted}},
	}
	return findAll[models.Ride](ctx, r.c, filter)
}

func (r *mongoRides) Put(ctx context.Context, ride *models.Ride) error {
	return replaceByID(ctx, r.c, ride.ID, ride)
}

func (r *mongoRides) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

type mongoBookings struct{ c *mongo.Collection }

func (r *mongoBookings) Create(ctx context.Context, b *models.Booking) error {
	_, err := r.c.InsertOne(ctx, b)
	return err
}

func (r *mongoBookings) Get(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, mapMongoErr(err)
	}
	return &b, nil
}

func (r *mongoBookings) FindByRide(ctx context.Context, rideID string) (*models.Booking, error) {
	var b models.Booking
	if err := r.c.FindOne(ctx, bson.M{"rideId": rideID}).Decode(&b); err != nil {
		return nil, mapMongoErr(err)
	}
	return &b, nil
}

func (r *mongoBookings) Put(ctx context.Context, b *models.Booking) error {
	return replaceByID(ctx, r.c, b.ID, b)
}

func (r *mongoBookings) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

type mongoSharedRides struct{ c *mongo.Collection }

func (r *mongoSharedRides) Create(ctx context.Context, s *models.SharedRide) error {
	_, err := r.c.InsertOne(ctx, s)
	return err
}

func (r *mongoSharedRides) Get(ctx context.Context, id string) (*models.SharedRide, error) {
	var s models.SharedRide
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, mapMongoErr(err)
	}
	return &s, nil
}

func (r *mongoSharedRides) List(ctx context.Context, limit int) ([]*models.SharedRide, error) {
	opts := withLimit(options.Find().SetSort(sortPostedDesc), limit)
	return findAll[models.SharedRide](ctx, r.c, bson.M{}, opts)
}

func (r *mongoSharedRides) SearchByPickup(ctx context.Context, prefix string, limit int) ([]*models.SharedRide, error) {
	filter := bson.M{
		"pickupLocation": bson.M{"$gte": prefix, "$lte": prefix + "\uf8ff"},
		"status":         "active",
	}
	opts := withLimit(options.Find().SetSort(sortPostedDesc), limit)
	return findAll[models.SharedRide](ctx, r.c, filter, opts)
}

func (r *mongoSharedRides) Put(ctx context.Context, s *models.SharedRide) error {
	return replaceByID(ctx, r.c, s.ID, s)
}

func (r *mongoSharedRides) PutIfRevision(ctx context.Context, s *models.SharedRide, expected int64) error {
	s.Revision = expected + 1
	res, err := r.c.ReplaceOne(ctx, bson.M{"_id": s.ID, "revision": expected}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (r *mongoSharedRides) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

type mongoVehicles struct{ c *mongo.Collection }

func (r *mongoVehicles) Create(ctx context.Context, v *models.Vehicle) error {
	_, err := r.c.InsertOne(ctx, v)
	return err
}

func (r *mongoVehicles) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return nil, mapMongoErr(err)
	}
	return &v, nil
}

func (r *mongoVehicles) List(ctx context.Context) ([]*models.Vehicle, error) {
	return findAll[models.Vehicle](ctx, r.c, bson.M{}, options.Find().SetSort(sortCreatedDesc))
}

func (r *mongoVehicles) Put(ctx context.Context, v *models.Vehicle) error {
	return replaceByID(ctx, r.c, v.ID, v)
}

func (r *mongoVehicles) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

type mongoPayments struct{ c *mongo.Collection }

func (r *mongoPayments) Create(ctx context.Context, p *models.Payment) error {
	_, err := r.c.InsertOne(ctx, p)
	return err
}

func (r *mongoPayments) Get(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapMongoErr(err)
	}
	return &p, nil
}

func (r *mongoPayments) FindByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.c.FindOne(ctx, bson.M{"stripePaymentIntentId": intentID}).Decode(&p); err != nil {
		return nil, mapMongoErr(err)
	}
	return &p, nil
}

func (r *mongoPayments) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*models.Payment, error) {
	opts := withLimit(options.Find().SetSort(sortCreatedDesc), limit)
	return findAll[models.Payment](ctx, r.c, bson.M{"passengerId": passengerID}, opts)
}

func (r *mongoPayments) ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.Payment, error) {
	opts := withLimit(options.Find().SetSort(sortCreatedDesc), limit)
	return findAll[models.Payment](ctx, r.c, bson.M{"driverId": driverID}, opts)
}

func (r *mongoPayments) Put(ctx context.Context, p *models.Payment) error {
	return replaceByID(ctx, r.c, p.ID, p)
}

type mongoReviews struct{ c *mongo.Collection }

func (r *mongoReviews) Create(ctx context.Context, rev *models.Review) error {
	_, err := r.c.InsertOne(ctx, rev)
	return err
}

func (r *mongoReviews) List(ctx context.Context, rideID string, limit int) ([]*models.Review, error) {
	filter := bson.M{}
	if rideID != "" {
		filter["rideId"] = rideID
	}
	opts := withLimit(options.Find().SetSort(sortCreatedDesc), limit)
	return findAll[models.Review](ctx, r.c, filter, opts)
}

func (r *mongoReviews) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}

const ratesDocID = "rates"

type mongoRates struct{ c *mongo.Collection }

func (r *mongoRates) Get(ctx context.Context) (*models.Rates, error) {
	var doc struct {
		models.Rates `bson:",inline"`
	}
	if err := r.c.FindOne(ctx, bson.M{"_id": ratesDocID}).Decode(&doc); err != nil {
		return nil, mapMongoErr(err)
	}
	rates := doc.Rates
	return &rates, nil
}

func (r *mongoRates) Put(ctx context.Context, rates *models.Rates) error {
	update := bson.M{"$set": bson.M{
		"ratePerKm":    rates.RatePerKm,
		"rateLKRPerKm": rates.RateLKRPerKm,
		"exchangeRate": rates.ExchangeRate,
		"updatedAt":    rates.UpdatedAt,
	}}
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": ratesDocID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoRates) Delete(ctx context.Context) error {
	_, err := r.c.DeleteOne(ctx, bson.M{"_id": ratesDocID})
	return err
}

type mongoPersonalRides struct{ c *mongo.Collection }

func (r *mongoPersonalRides) Create(ctx context.Context, p *models.PersonalRide) error {
	_, err := r.c.InsertOne(ctx, p)
	return err
}

func (r *mongoPersonalRides) Get(ctx context.Context, id string) (*models.PersonalRide, error) {
	var p models.PersonalRide
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapMongoErr(err)
	}
	return &p, nil
}

func (r *mongoPersonalRides) List(ctx context.Context, limit int) ([]*models.PersonalRide, error) {
	opts := withLimit(options.Find().SetSort(sortCreatedDesc), limit)
	return findAll[models.PersonalRide](ctx, r.c, bson.M{}, opts)
}

func (r *mongoPersonalRides) Put(ctx context.Context, p *models.PersonalRide) error {
	return replaceByID(ctx, r.c, p.ID, p)
}

func (r *mongoPersonalRides) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, id)
}
