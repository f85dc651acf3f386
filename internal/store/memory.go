package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/taxi-backend/internal/models"
)

// NewMemory returns a Store backed by in-process maps. It is used when no
// MONGO_URI is configured and throughout the test suite.
func NewMemory() *Store {
	return &Store{
		Users:         &memUsers{m: map[string]*models.User{}},
		Rides:         &memRides{m: map[string]*models.Ride{}},
		Bookings:      &memBookings{m: map[string]*models.Booking{}},
		SharedRides:   &memSharedRides{m: map[string]*models.SharedRide{}},
		Vehicles:      &memVehicles{m: map[string]*models.Vehicle{}},
		Payments:      &memPayments{m: map[string]*models.Payment{}},
		Reviews:       &memReviews{m: map[string]*models.Review{}},
		Rates:         &memRates{},
		PersonalRides: &memPersonalRides{m: map[string]*models.PersonalRide{}},
	}
}

type memUsers struct {
	mu sync.RWMutex
	m  map[string]*models.User
}

func (r *memUsers) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.m[u.ID] = &cp
	return nil
}

func (r *memUsers) Get(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.m {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUsers) Put(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	r.m[u.ID] = &cp
	return nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

func (r *memUsers) ListDrivers(_ context.Context, f DriverFilter) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.User
	for _, u := range r.m {
		if u.Role != models.RoleDriver {
			continue
		}
		if f.Online != nil && u.IsOnline != *f.Online {
			continue
		}
		if f.ActiveOnly && !u.IsActive {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memRides struct {
	mu sync.RWMutex
	m  map[string]*models.Ride
}

func cloneRide(r *models.Ride) *models.Ride {
	cp := *r
	if r.SharedPassengers != nil {
		cp.SharedPassengers = append([]models.SharedPassenger(nil), r.SharedPassengers...)
	}
	return &cp
}

func (r *memRides) Create(_ context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[ride.ID] = cloneRide(ride)
	return nil
}

func (r *memRides) Get(_ context.Context, id string) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *memRides) List(_ context.Context, f RideFilter) ([]*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Ride
	for _, ride := range r.m {
		if f.Status != "" && ride.Status != f.Status {
			continue
		}
		if f.RideType != "" && ride.RideType != f.RideType {
			continue
		}
		out = append(out, cloneRide(ride))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRides) Pending(_ context.Context) ([]*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Ride
	for _, ride := range r.m {
		if ride.Status == models.RideStatusPending {
			out = append(out, cloneRide(ride))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRides) OpenShared(_ context.Context) ([]*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Ride
	for _, ride := range r.m {
		if ride.RideType != models.RideTypeShared {
			continue
		}
		if ride.Status != models.RideStatusPending && ride.Status != models.RideStatusAccepted {
			continue
		}
		out = append(out, cloneRide(ride))
	}
	return out, nil
}

func (r *memRides) Put(_ context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[ride.ID]; !ok {
		return ErrNotFound
	}
	r.m[ride.ID] = cloneRide(ride)
	return nil
}

func (r *memRides) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

type memBookings struct {
	mu sync.RWMutex
	m  map[string]*models.Booking
}

func (r *memBookings) Create(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.m[b.ID] = &cp
	return nil
}

func (r *memBookings) Get(_ context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBookings) FindByRide(_ context.Context, rideID string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.m {
		if b.RideID == rideID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memBookings) Put(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	r.m[b.ID] = &cp
	return nil
}

func (r *memBookings) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

type memSharedRides struct {
	mu sync.Mutex
	m  map[string]*models.SharedRide
}

func cloneSharedRide(s *models.SharedRide) *models.SharedRide {
	cp := *s
	if s.Bookings != nil {
		cp.Bookings = append([]models.SeatBooking(nil), s.Bookings...)
	}
	return &cp
}

func (r *memSharedRides) Create(_ context.Context, s *models.SharedRide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = cloneSharedRide(s)
	return nil
}

func (r *memSharedRides) Get(_ context.Context, id string) (*models.SharedRide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSharedRide(s), nil
}

func (r *memSharedRides) List(_ context.Context, limit int) ([]*models.SharedRide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SharedRide
	for _, s := range r.m {
		out = append(out, cloneSharedRide(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedDate.After(out[j].PostedDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSharedRides) SearchByPickup(_ context.Context, prefix string, limit int) ([]*models.SharedRide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SharedRide
	for _, s := range r.m {
		if s.Status != "active" {
			continue
		}
		if !strings.HasPrefix(s.PickupLocation, prefix) {
			continue
		}
		out = append(out, cloneSharedRide(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedDate.After(out[j].PostedDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSharedRides) Put(_ context.Context, s *models.SharedRide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[s.ID]; !ok {
		return ErrNotFound
	}
	r.m[s.ID] = cloneSharedRide(s)
	return nil
}

func (r *memSharedRides) PutIfRevision(_ context.Context, s *models.SharedRide, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[s.ID]
	if !ok {
		return ErrConflict
	}
	if cur.Revision != expected {
		return ErrConflict
	}
	s.Revision = expected + 1
	r.m[s.ID] = cloneSharedRide(s)
	return nil
}

func (r *memSharedRides) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

type memVehicles struct {
	mu sync.RWMutex
	m  map[string]*models.Vehicle
}

func (r *memVehicles) Create(_ context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.m[v.ID] = &cp
	return nil
}

func (r *memVehicles) Get(_ context.Context, id string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memVehicles) List(_ context.Context) ([]*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range r.m {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memVehicles) Put(_ context.Context, v *models.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[v.ID]; !ok {
		return ErrNotFound
	}
	cp := *v
	r.m[v.ID] = &cp
	return nil
}

func (r *memVehicles) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

type memPayments struct {
	mu sync.RWMutex
	m  map[string]*models.Payment
}

func (r *memPayments) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.m[p.ID] = &cp
	return nil
}

func (r *memPayments) Get(_ context.Context, id string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) FindByIntent(_ context.Context, intentID string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.m {
		if p.PaymentIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPayments) listBy(match func(*models.Payment) bool, limit int) []*models.Payment {
	var out []*models.Payment
	for _, p := range r.m {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memPayments) ListByPassenger(_ context.Context, passengerID string, limit int) ([]*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listBy(func(p *models.Payment) bool { return p.PassengerID == passengerID }, limit), nil
}

func (r *memPayments) ListByDriver(_ context.Context, driverID string, limit int) ([]*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listBy(func(p *models.Payment) bool { return p.DriverID == driverID }, limit), nil
}

func (r *memPayments) Put(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.m[p.ID] = &cp
	return nil
}

type memReviews struct {
	mu sync.RWMutex
	m  map[string]*models.Review
}

func (r *memReviews) Create(_ context.Context, rev *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rev
	r.m[rev.ID] = &cp
	return nil
}

func (r *memReviews) List(_ context.Context, rideID string, limit int) ([]*models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Review
	for _, rev := range r.m {
		if rideID != "" && rev.RideID != rideID {
			continue
		}
		cp := *rev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memReviews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}

type memRates struct {
	mu    sync.RWMutex
	rates *models.Rates
}

func (r *memRates) Get(_ context.Context) (*models.Rates, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rates == nil {
		return nil, ErrNotFound
	}
	cp := *r.rates
	return &cp, nil
}

func (r *memRates) Put(_ context.Context, rates *models.Rates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rates
	r.rates = &cp
	return nil
}

func (r *memRates) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rates == nil {
		return ErrNotFound
	}
	r.rates = nil
	return nil
}

type memPersonalRides struct {
	mu sync.RWMutex
	m  map[string]*models.PersonalRide
}

func (r *memPersonalRides) Create(_ context.Context, p *models.PersonalRide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.m[p.ID] = &cp
	return nil
}

func (r *memPersonalRides) Get(_ context.Context, id string) (*models.PersonalRide, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPersonalRides) List(_ context.Context, limit int) ([]*models.PersonalRide, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.PersonalRide
	for _, p := range r.m {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPersonalRides) Put(_ context.Context, p *models.PersonalRide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.m[p.ID] = &cp
	return nil
}

func (r *memPersonalRides) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return ErrNotFound
	}
	delete(r.m, id)
	return nil
}
