package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cloneRide gives each caller its own copy, the way a decoded mongo
// document would be.
func cloneRide(r *models.Ride) *models.Ride {
	if r == nil {
		return nil
	}
	c := *r
	if r.DriverID != nil {
		id := *r.DriverID
		c.DriverID = &id
	}
	if r.Driver != nil {
		d := *r.Driver
		c.Driver = &d
	}
	if r.Vehicle != nil {
		v := *r.Vehicle
		c.Vehicle = &v
	}
	if r.PassengerRating != nil {
		pr := *r.PassengerRating
		c.PassengerRating = &pr
	}
	if r.DriverRating != nil {
		dr := *r.DriverRating
		c.DriverRating = &dr
	}
	return &c
}

type fakeRideRepo struct {
	mu        sync.Mutex
	live      map[primitive.ObjectID]*models.Ride
	completed map[primitive.ObjectID]*models.Ride
	cancelled map[primitive.ObjectID]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{
		live:      make(map[primitive.ObjectID]*models.Ride),
		completed: make(map[primitive.ObjectID]*models.Ride),
		cancelled: make(map[primitive.ObjectID]*models.Ride),
	}
}

func (f *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	ride.Status = models.RideStatusPending
	ride.CreatedAt = time.Now()
	f.live[ride.ID] = cloneRide(ride)
	return nil
}

func (f *fakeRideRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) GetFromHistory(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ride, ok := f.completed[id]; ok {
		return cloneRide(ride), nil
	}
	if ride, ok := f.cancelled[id]; ok {
		return cloneRide(ride), nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeRideRepo) Accept(ctx context.Context, id, driverID primitive.ObjectID, driver models.PartyInfo, vehicle models.VehicleProfile) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || ride.Status != models.RideStatusPending || ride.DriverID != nil {
		return nil, models.ErrRideUnavailable
	}

	now := time.Now()
	ride.DriverID = &driverID
	ride.Driver = &driver
	ride.Vehicle = &vehicle
	ride.Status = models.RideStatusAccepted
	ride.AcceptedAt = &now
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) MarkArrived(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || ride.Status != models.RideStatusAccepted {
		return nil, models.ErrRideUnavailable
	}
	if !ride.DriverArrived {
		now := time.Now()
		ride.DriverArrived = true
		ride.ArrivedAt = &now
	}
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) Start(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || ride.Status != models.RideStatusAccepted {
		return nil, models.ErrRideUnavailable
	}
	now := time.Now()
	ride.Status = models.RideStatusInProgress
	ride.StartedAt = &now
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) Complete(ctx context.Context, id primitive.ObjectID, finalLocation models.GeoPoint, completedBy string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || ride.Status != models.RideStatusInProgress {
		return nil, models.ErrRideUnavailable
	}
	now := time.Now()
	ride.Status = models.RideStatusCompleted
	ride.CompletedAt = &now
	ride.CompletedBy = completedBy
	ride.FinalLocation = &finalLocation

	f.completed[id] = ride
	delete(f.live, id)
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) Cancel(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || (ride.Status != models.RideStatusPending && ride.Status != models.RideStatusAccepted) {
		return nil, models.ErrRideUnavailable
	}
	now := time.Now()
	ride.Status = models.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledBy = cancelledBy
	ride.CancelReason = reason

	f.cancelled[id] = ride
	delete(f.live, id)
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) CancelPending(ctx context.Context, id primitive.ObjectID, reason, cancelledBy string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.live[id]
	if !ok || ride.Status != models.RideStatusPending || ride.DriverID != nil {
		return nil, models.ErrRideUnavailable
	}
	now := time.Now()
	ride.Status = models.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledBy = cancelledBy
	ride.CancelReason = reason

	f.cancelled[id] = ride
	delete(f.live, id)
	return cloneRide(ride), nil
}

func (f *fakeRideRepo) SetPassengerRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.completed[id]
	if !ok {
		return models.ErrNotFound
	}
	if ride.PassengerRating != nil {
		return models.ErrAlreadyRated
	}
	ride.PassengerRating = &rating
	return nil
}

func (f *fakeRideRepo) SetDriverRating(ctx context.Context, id primitive.ObjectID, rating models.RideRating) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ride, ok := f.completed[id]
	if !ok {
		return models.ErrNotFound
	}
	if ride.DriverRating != nil {
		return models.ErrAlreadyRated
	}
	ride.DriverRating = &rating
	return nil
}

func (f *fakeRideRepo) GetPendingRides(ctx context.Context) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rides []*models.Ride
	for _, ride := range f.live {
		if ride.Status == models.RideStatusPending {
			rides = append(rides, cloneRide(ride))
		}
	}
	return rides, nil
}

func (f *fakeRideRepo) GetActiveByPassenger(ctx context.Context, passengerID primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ride := range f.live {
		if ride.PassengerID == passengerID && !ride.Status.Terminal() {
			return cloneRide(ride), nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRideRepo) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ride := range f.live {
		if ride.DriverID != nil && *ride.DriverID == driverID && !ride.Status.Terminal() {
			return cloneRide(ride), nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRideRepo) ListHistoryByPassenger(ctx context.Context, passengerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rides []*models.Ride
	for _, store := range []map[primitive.ObjectID]*models.Ride{f.completed, f.cancelled} {
		for _, ride := range store {
			if ride.PassengerID == passengerID {
				rides = append(rides, cloneRide(ride))
			}
		}
	}
	return rides, int64(len(rides)), nil
}

func (f *fakeRideRepo) ListHistoryByDriver(ctx context.Context, driverID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rides []*models.Ride
	for _, store := range []map[primitive.ObjectID]*models.Ride{f.completed, f.cancelled} {
		for _, ride := range store {
			if ride.DriverID != nil && *ride.DriverID == driverID {
				rides = append(rides, cloneRide(ride))
			}
		}
	}
	return rides, int64(len(rides)), nil
}

func (f *fakeRideRepo) WatchPendingRides(ctx context.Context) (<-chan models.RideEvent, error) {
	return f.watch(ctx), nil
}

func (f *fakeRideRepo) WatchRide(ctx context.Context, id primitive.ObjectID) (<-chan models.RideEvent, error) {
	return f.watch(ctx), nil
}

func (f *fakeRideRepo) watch(ctx context.Context) <-chan models.RideEvent {
	events := make(chan models.RideEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events
}

type fakeDriverRepo struct {
	mu      sync.Mutex
	drivers map[primitive.ObjectID]*models.Driver
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{drivers: make(map[primitive.ObjectID]*models.Driver)}
}

func cloneDriver(d *models.Driver) *models.Driver {
	c := *d
	if d.CurrentLocation != nil {
		loc := *d.CurrentLocation
		c.CurrentLocation = &loc
	}
	if d.LastLocationUpdate != nil {
		ts := *d.LastLocationUpdate
		c.LastLocationUpdate = &ts
	}
	return &c
}

func (f *fakeDriverRepo) put(driver *models.Driver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	f.drivers[driver.ID] = cloneDriver(driver)
}

func (f *fakeDriverRepo) Create(ctx context.Context, driver *models.Driver) error {
	f.put(driver)
	return nil
}

func (f *fakeDriverRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneDriver(driver), nil
}

func (f *fakeDriverRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, driver := range f.drivers {
		if driver.UserID == userID {
			return cloneDriver(driver), nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeDriverRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	if vehicle, ok := updates["vehicle"].(models.VehicleProfile); ok {
		driver.Vehicle = vehicle
	}
	if status, ok := updates["status"].(models.DriverApprovalStatus); ok {
		driver.Status = status
	}
	return nil
}

func (f *fakeDriverRepo) SetOnline(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	now := time.Now()
	driver.IsOnline = true
	driver.CurrentLocation = &location
	driver.LastLocationUpdate = &now
	return nil
}

func (f *fakeDriverRepo) SetOffline(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	driver.IsOnline = false
	return nil
}

func (f *fakeDriverRepo) UpdateLocation(ctx context.Context, id primitive.ObjectID, location models.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok || !driver.IsOnline {
		return models.ErrNotFound
	}
	now := time.Now()
	driver.CurrentLocation = &location
	driver.LastLocationUpdate = &now
	return nil
}

func (f *fakeDriverRepo) GetAvailable(ctx context.Context, freshSince time.Time) ([]*models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var drivers []*models.Driver
	for _, driver := range f.drivers {
		if driver.Status == models.DriverApprovalApproved && driver.IsOnline &&
			driver.LastLocationUpdate != nil && !driver.LastLocationUpdate.Before(freshSince) {
			drivers = append(drivers, cloneDriver(driver))
		}
	}
	return drivers, nil
}

func (f *fakeDriverRepo) GetNearby(ctx context.Context, lat, lng, radiusKM float64, freshSince time.Time) ([]*models.Driver, error) {
	eligible, err := f.GetAvailable(ctx, freshSince)
	if err != nil {
		return nil, err
	}
	var drivers []*models.Driver
	for _, driver := range eligible {
		if driver.CurrentLocation == nil {
			continue
		}
		if utils.IsWithinRadius(lat, lng, driver.CurrentLocation.Latitude(), driver.CurrentLocation.Longitude(), radiusKM) {
			drivers = append(drivers, driver)
		}
	}
	return drivers, nil
}

func (f *fakeDriverRepo) ApplyRating(ctx context.Context, id primitive.ObjectID, stars float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	total := float64(driver.TotalRatings)
	driver.Rating = (driver.Rating*total + stars) / (total + 1)
	driver.TotalRatings++
	return nil
}

func (f *fakeDriverRepo) IncrementRides(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	driver, ok := f.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	driver.TotalRides++
	return nil
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories map[primitive.ObjectID]*models.VehicleCategory
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[primitive.ObjectID]*models.VehicleCategory)}
}

func (f *fakeCategoryRepo) Create(ctx context.Context, category *models.VehicleCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	copied := *category
	f.categories[category.ID] = &copied
	return nil
}

func (f *fakeCategoryRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VehicleCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	category, ok := f.categories[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *category
	return &copied, nil
}

func (f *fakeCategoryRepo) List(ctx context.Context, activeOnly bool) ([]*models.VehicleCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var categories []*models.VehicleCategory
	for _, category := range f.categories {
		if activeOnly && !category.IsActive {
			continue
		}
		copied := *category
		categories = append(categories, &copied)
	}
	return categories, nil
}

func (f *fakeCategoryRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return models.ErrNotFound
	}
	return nil
}

func (f *fakeCategoryRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (f *fakeUserRepo) put(user *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	copied := *user
	f.users[user.ID] = &copied
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) AddDeviceToken(ctx context.Context, id primitive.ObjectID, token models.DeviceToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	user.DeviceTokens = append(user.DeviceTokens, token)
	return nil
}

func (f *fakeUserRepo) RemoveDeviceToken(ctx context.Context, id primitive.ObjectID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	kept := user.DeviceTokens[:0]
	for _, t := range user.DeviceTokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	user.DeviceTokens = kept
	return nil
}

// fakeCache is an in-memory CacheService. Expirations on plain keys are
// honored; set members never expire, which is close enough for tests.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]expiringValue
	sets   map[string]map[string]struct{}
}

type expiringValue struct {
	value     interface{}
	expiresAt time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]expiringValue),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	return models.ErrNotFound // forces repo reads in tests
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = expiringValue{value: value, expiresAt: time.Now().Add(expiration)}
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return ok && time.Now().Before(v.expiresAt), nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok && time.Now().Before(v.expiresAt) {
		return false, nil
	}
	f.values[key] = expiringValue{value: value, expiresAt: time.Now().Add(expiration)}
	return true, nil
}

func (f *fakeCache) SAdd(ctx context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]struct{})
	}
	for _, m := range members {
		if s, ok := m.(string); ok {
			f.sets[key][s] = struct{}{}
		}
	}
	return nil
}

func (f *fakeCache) SRem(ctx context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		if s, ok := m.(string); ok {
			delete(f.sets[key], s)
		}
	}
	return nil
}

func (f *fakeCache) SMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []string
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (f *fakeCache) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := member.(string)
	if !ok {
		return false, nil
	}
	_, found := f.sets[key][s]
	return found, nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

// recordingNotifier counts delivered events per type.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if strings.HasPrefix(e, prefix) {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) RideRequested(ride *models.Ride) { n.record("requested") }
func (n *recordingNotifier) RideAccepted(ride *models.Ride)  { n.record("accepted") }
func (n *recordingNotifier) RideArrived(ride *models.Ride)   { n.record("arrived") }
func (n *recordingNotifier) RideStarted(ride *models.Ride)   { n.record("started") }
func (n *recordingNotifier) RideCompleted(ride *models.Ride) { n.record("completed") }
func (n *recordingNotifier) RideCancelled(ride *models.Ride) { n.record("cancelled") }
