package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hygienefix/internal/errs"
	"hygienefix/internal/infrastructure/persistence/sqlite/model"
	"hygienefix/internal/ports"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"

	SubscriberStatusActive       = "active"
	SubscriberStatusUnsubscribed = "unsubscribed"
)

// upsertColumns are the columns a pipeline upsert replaces. contact_*,
// website, outreach_status and first_seen_at stay out of this list so
// re-ingesting a row never clobbers them.
var upsertColumns = []string{
	"business_name",
	"business_type",
	"business_type_id",
	"rating_value",
	"rating_date",
	"address_line1",
	"address_line2",
	"address_line3",
	"postcode",
	"local_authority_name",
	"local_authority_code",
	"local_authority_email",
	"scheme_type",
	"hygiene_score",
	"structural_score",
	"management_score",
	"latitude",
	"longitude",
	"last_updated_at",
}

type RatingsRepository struct {
	db *gorm.DB
}

var _ ports.RatingsRepository = (*RatingsRepository)(nil)

func NewRatingsRepository(db *gorm.DB) *RatingsRepository {
	return &RatingsRepository{db: db}
}

func (r *RatingsRepository) UpsertEstablishments(ctx context.Context, rows []ports.Establishment) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(rows) == 0 {
		return nil
	}

	now := nowUTCString()
	models := make([]model.Establishment, 0, len(rows))
	for _, row := range rows {
		models = append(models, model.Establishment{
			FHRSID:              row.FHRSID,
			BusinessName:        row.BusinessName,
			BusinessType:        row.BusinessType,
			BusinessTypeID:      row.BusinessTypeID,
			RatingValue:         row.RatingValue,
			RatingDate:          row.RatingDate,
			AddressLine1:        row.AddressLine1,
			AddressLine2:        row.AddressLine2,
			AddressLine3:        row.AddressLine3,
			Postcode:            row.Postcode,
			LocalAuthorityName:  row.LocalAuthorityName,
			LocalAuthorityCode:  row.LocalAuthorityCode,
			LocalAuthorityEmail: row.LocalAuthorityEmail,
			SchemeType:          row.SchemeType,
			HygieneScore:        row.HygieneScore,
			StructuralScore:     row.StructuralScore,
			ManagementScore:     row.ManagementScore,
			Latitude:            row.Latitude,
			Longitude:           row.Longitude,
			OutreachStatus:      "new",
			FirstSeenAt:         now,
			LastUpdatedAt:       now,
		})
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fhrsid"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&models).Error; err != nil {
		return errs.Wrap(err, "upsert establishments")
	}
	return nil
}

func (r *RatingsRepository) GetEstablishment(ctx context.Context, fhrsid int64) (ports.Establishment, error) {
	if ctx == nil {
		return ports.Establishment{}, errors.New("context is required")
	}

	var row model.Establishment
	if err := r.db.WithContext(ctx).Where("fhrsid = ?", fhrsid).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Establishment{}, ports.ErrEstablishmentNotFound
		}
		return ports.Establishment{}, errs.Wrap(err, "query establishment")
	}
	return mapEstablishment(row), nil
}

func (r *RatingsRepository) GetEstablishmentsByFHRSIDs(ctx context.Context, fhrsids []int64) ([]ports.Establishment, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if len(fhrsids) == 0 {
		return nil, nil
	}

	var rows []model.Establishment
	if err := r.db.WithContext(ctx).Where("fhrsid IN ?", fhrsids).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query establishments by fhrsid set")
	}

	items := make([]ports.Establishment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEstablishment(row))
	}
	return items, nil
}

func (r *RatingsRepository) SearchEstablishments(ctx context.Context, filter ports.EstablishmentFilter) ([]ports.Establishment, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query := r.db.WithContext(ctx).Model(&model.Establishment{})

	if name := strings.TrimSpace(filter.NameContains); name != "" {
		query = query.Where("business_name LIKE ?", "%"+name+"%")
	}
	if postcode := strings.TrimSpace(filter.Postcode); postcode != "" {
		query = query.Where("postcode LIKE ?", postcode+"%")
	}
	if authority := strings.TrimSpace(filter.LocalAuthority); authority != "" {
		query = query.Where("local_authority_name = ?", authority)
	}
	if filter.MaxRating != nil {
		query = query.Where("rating_value IN ?", numericTiersUpTo(*filter.MaxRating))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query = query.Order("rating_value asc, fhrsid asc").Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []model.Establishment
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "search establishments")
	}

	items := make([]ports.Establishment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEstablishment(row))
	}
	return items, nil
}

func (r *RatingsRepository) CountEstablishmentsByRating(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	type ratingCount struct {
		RatingValue string `gorm:"column:rating_value"`
		Count       int64  `gorm:"column:count"`
	}

	var rows []ratingCount
	if err := r.db.WithContext(ctx).
		Model(&model.Establishment{}).
		Select("rating_value, count(*) as count").
		Group("rating_value").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count establishments by rating")
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.RatingValue] = row.Count
	}
	return counts, nil
}

func (r *RatingsRepository) CreateRatingChange(ctx context.Context, change ports.RatingChange) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	detectedAt := change.DetectedAt
	if detectedAt == "" {
		detectedAt = nowUTCString()
	}

	row := model.RatingChange{
		FHRSID:        change.FHRSID,
		OldRating:     change.OldRating,
		NewRating:     change.NewRating,
		OldHygiene:    change.OldHygiene,
		NewHygiene:    change.NewHygiene,
		OldStructural: change.OldStructural,
		NewStructural: change.NewStructural,
		OldManagement: change.OldManagement,
		NewManagement: change.NewManagement,
		DetectedAt:    detectedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert rating change")
	}
	return nil
}

func (r *RatingsRepository) StartPipelineRun(ctx context.Context, runType string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	row := model.PipelineRun{
		RunID:     uuid.NewString(),
		RunType:   runType,
		Status:    RunStatusRunning,
		StartedAt: nowUTCString(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", errs.Wrap(err, "insert pipeline run")
	}
	return row.RunID, nil
}

func (r *RatingsRepository) CompletePipelineRun(ctx context.Context, runID string, done ports.PipelineRunCompletion) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	result := r.db.WithContext(ctx).
		Model(&model.PipelineRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]any{
			"status":             RunStatusCompleted,
			"completed_at":       nowUTCString(),
			"total_fetched":      done.TotalFetched,
			"new_establishments": done.NewEstablishments,
			"rating_changes":     done.RatingChanges,
			"errors":             done.Errors,
			"error_log":          done.ErrorLog,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "complete pipeline run")
	}
	return nil
}

func (r *RatingsRepository) GetPipelineRun(ctx context.Context, runID string) (ports.PipelineRun, error) {
	if ctx == nil {
		return ports.PipelineRun{}, errors.New("context is required")
	}

	var row model.PipelineRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Take(&row).Error; err != nil {
		return ports.PipelineRun{}, errs.Wrap(err, "query pipeline run")
	}

	return ports.PipelineRun{
		RunID:             row.RunID,
		RunType:           row.RunType,
		Status:            row.Status,
		StartedAt:         row.StartedAt,
		CompletedAt:       row.CompletedAt,
		TotalFetched:      row.TotalFetched,
		NewEstablishments: row.NewEstablishments,
		RatingChanges:     row.RatingChanges,
		Errors:            row.Errors,
		ErrorLog:          row.ErrorLog,
	}, nil
}

func (r *RatingsRepository) UpsertSubscriber(ctx context.Context, sub ports.Subscriber) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if email == "" {
		return errors.New("email is required")
	}

	subscribedAt := sub.SubscribedAt
	if subscribedAt == "" {
		subscribedAt = nowUTCString()
	}

	row := model.Subscriber{
		Email:        email,
		FHRSID:       sub.FHRSID,
		Source:       sub.Source,
		Status:       SubscriberStatusActive,
		SubscribedAt: subscribedAt,
	}
	if sub.BusinessName != "" {
		row.BusinessName = &sub.BusinessName
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"fhrsid":          row.FHRSID,
			"business_name":   row.BusinessName,
			"source":          row.Source,
			"status":          SubscriberStatusActive,
			"subscribed_at":   row.SubscribedAt,
			"unsubscribed_at": nil,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert subscriber")
	}
	return nil
}

func (r *RatingsRepository) SetSubscriberStatus(ctx context.Context, email string, status string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("email is required")
	}

	updates := map[string]any{"status": status}
	if status == SubscriberStatusUnsubscribed {
		updates["unsubscribed_at"] = nowUTCString()
	}

	result := r.db.WithContext(ctx).
		Model(&model.Subscriber{}).
		Where("email = ?", email).
		Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update subscriber status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrSubscriberNotFound
	}
	return nil
}

func mapEstablishment(row model.Establishment) ports.Establishment {
	return ports.Establishment{
		FHRSID:              row.FHRSID,
		BusinessName:        row.BusinessName,
		BusinessType:        row.BusinessType,
		BusinessTypeID:      row.BusinessTypeID,
		RatingValue:         row.RatingValue,
		RatingDate:          row.RatingDate,
		AddressLine1:        row.AddressLine1,
		AddressLine2:        row.AddressLine2,
		AddressLine3:        row.AddressLine3,
		Postcode:            row.Postcode,
		LocalAuthorityName:  row.LocalAuthorityName,
		LocalAuthorityCode:  row.LocalAuthorityCode,
		LocalAuthorityEmail: row.LocalAuthorityEmail,
		SchemeType:          row.SchemeType,
		HygieneScore:        row.HygieneScore,
		StructuralScore:     row.StructuralScore,
		ManagementScore:     row.ManagementScore,
		Latitude:            row.Latitude,
		Longitude:           row.Longitude,
		OutreachStatus:      row.OutreachStatus,
		FirstSeenAt:         row.FirstSeenAt,
		LastUpdatedAt:       row.LastUpdatedAt,
	}
}

// numericTiersUpTo returns the rating tiers "0".."max" as stored strings.
// Non-numeric states (Exempt, AwaitingInspection, ...) never match a
// numeric ceiling filter.
func numericTiersUpTo(max int) []string {
	if max < 0 {
		max = 0
	}
	if max > 5 {
		max = 5
	}
	tiers := make([]string, 0, max+1)
	for i := 0; i <= max; i++ {
		tiers = append(tiers, strconv.Itoa(i))
	}
	return tiers
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
