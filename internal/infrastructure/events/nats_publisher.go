package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"

	"hygienefix/internal/errs"
	"hygienefix/internal/ports"
)

// NatsPublisher pushes rating-change events onto a NATS subject for the
// outreach/broadcast consumer.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

var _ ports.ChangePublisher = (*NatsPublisher)(nil)

func NewNatsPublisher(url string, subject string) (*NatsPublisher, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if subject == "" {
		return nil, errors.New("nats subject is required")
	}

	conn, err := nats.Connect(url, nats.Name("hygienefix"))
	if err != nil {
		return nil, errs.Wrap(err, "connect to nats")
	}

	return &NatsPublisher{conn: conn, subject: subject}, nil
}

type ratingChangeMessage struct {
	FHRSID        int64  `json:"fhrsid"`
	OldRating     string `json:"old_rating"`
	NewRating     string `json:"new_rating"`
	OldHygiene    *int   `json:"old_hygiene,omitempty"`
	NewHygiene    *int   `json:"new_hygiene,omitempty"`
	OldStructural *int   `json:"old_structural,omitempty"`
	NewStructural *int   `json:"new_structural,omitempty"`
	OldManagement *int   `json:"old_management,omitempty"`
	NewManagement *int   `json:"new_management,omitempty"`
	DetectedAt    string `json:"detected_at"`
}

func (p *NatsPublisher) PublishRatingChange(ctx context.Context, change ports.RatingChange) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	payload, err := json.Marshal(ratingChangeMessage{
		FHRSID:        change.FHRSID,
		OldRating:     change.OldRating,
		NewRating:     change.NewRating,
		OldHygiene:    change.OldHygiene,
		NewHygiene:    change.NewHygiene,
		OldStructural: change.OldStructural,
		NewStructural: change.NewStructural,
		OldManagement: change.OldManagement,
		NewManagement: change.NewManagement,
		DetectedAt:    change.DetectedAt,
	})
	if err != nil {
		return errs.Wrap(err, "encode rating change")
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return errs.Wrap(err, "publish rating change")
	}
	return nil
}

func (p *NatsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

var _ ports.ChangePublisher = NoopPublisher{}

func (NoopPublisher) PublishRatingChange(context.Context, ports.RatingChange) error {
	return nil
}
