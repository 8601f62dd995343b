package ports

import (
	"context"
	"errors"
)

var (
	ErrEstablishmentNotFound = errors.New("establishment not found")
	ErrSubscriberNotFound    = errors.New("subscriber not found")
)

// Establishment is the normalized row shape shared between the pipeline,
// the store, and the lookup surface. Nil pointers mean the upstream scheme
// did not publish the value; that is distinct from a zero score.
type Establishment struct {
	FHRSID              int64
	BusinessName        string
	BusinessType        string
	BusinessTypeID      int
	RatingValue         string
	RatingDate          string
	AddressLine1        string
	AddressLine2        string
	AddressLine3        string
	Postcode            string
	LocalAuthorityName  string
	LocalAuthorityCode  string
	LocalAuthorityEmail string
	SchemeType          string
	HygieneScore        *int
	StructuralScore     *int
	ManagementScore     *int
	Latitude            *float64
	Longitude           *float64

	// Outreach fields are owned by the outreach surface, never by the
	// pipeline upsert.
	OutreachStatus string
	FirstSeenAt    string
	LastUpdatedAt  string
}

// RatingChange is one detected rating transition, append-only.
type RatingChange struct {
	FHRSID        int64
	OldRating     string
	NewRating     string
	OldHygiene    *int
	NewHygiene    *int
	OldStructural *int
	NewStructural *int
	OldManagement *int
	NewManagement *int
	DetectedAt    string
}

// PipelineRunCompletion carries the final aggregated stats for a run record.
type PipelineRunCompletion struct {
	TotalFetched      int
	NewEstablishments int
	RatingChanges     int
	Errors            int
	ErrorLog          string
}

type PipelineRun struct {
	RunID             string
	RunType           string
	Status            string
	StartedAt         string
	CompletedAt       *string
	TotalFetched      int
	NewEstablishments int
	RatingChanges     int
	Errors            int
	ErrorLog          string
}

type EstablishmentFilter struct {
	NameContains   string
	Postcode       string
	LocalAuthority string
	MaxRating      *int
	Limit          int
	Offset         int
}

type Subscriber struct {
	Email        string
	FHRSID       *int64
	BusinessName string
	Source       string
	Status       string
	SubscribedAt string
}

type RatingsReadRepository interface {
	GetEstablishment(ctx context.Context, fhrsid int64) (Establishment, error)
	GetEstablishmentsByFHRSIDs(ctx context.Context, fhrsids []int64) ([]Establishment, error)
	SearchEstablishments(ctx context.Context, filter EstablishmentFilter) ([]Establishment, error)
	CountEstablishmentsByRating(ctx context.Context) (map[string]int64, error)
	GetPipelineRun(ctx context.Context, runID string) (PipelineRun, error)
}

type RatingsRepository interface {
	RatingsReadRepository
	UpsertEstablishments(ctx context.Context, rows []Establishment) error
	CreateRatingChange(ctx context.Context, change RatingChange) error
	StartPipelineRun(ctx context.Context, runType string) (string, error)
	CompletePipelineRun(ctx context.Context, runID string, done PipelineRunCompletion) error
	UpsertSubscriber(ctx context.Context, sub Subscriber) error
	SetSubscriberStatus(ctx context.Context, email string, status string) error
}
