package config

import (
	"time"
)

type DispatchConfig struct {
	// RejectPolicy controls what a driver's explicit decline does:
	// "decline" hides the ride from that driver only, "cancel" cancels the
	// whole ride for the passenger.
	RejectPolicy string `yaml:"reject_policy"`

	SearchRadiusKM    float64       `yaml:"search_radius_km"`
	PresenceFreshness time.Duration `yaml:"presence_freshness"`
	LocationMinEvery  time.Duration `yaml:"location_min_every"`
	AssignmentPoll    time.Duration `yaml:"assignment_poll"`
	AssignmentWaitCap time.Duration `yaml:"assignment_wait_cap"`
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		RejectPolicy:      getEnv("DISPATCH_REJECT_POLICY", "decline"),
		SearchRadiusKM:    float64(getEnvAsInt("DISPATCH_SEARCH_RADIUS_KM", 10)),
		PresenceFreshness: getEnvAsDuration("PRESENCE_FRESHNESS", 15*time.Minute),
		LocationMinEvery:  getEnvAsDuration("LOCATION_MIN_EVERY", 10*time.Second),
		AssignmentPoll:    getEnvAsDuration("ASSIGNMENT_POLL", 3*time.Second),
		AssignmentWaitCap: getEnvAsDuration("ASSIGNMENT_WAIT_CAP", 5*time.Minute),
	}
}
