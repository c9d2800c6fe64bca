package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

const (
	maxDeadLetterMessage = 1024
	defaultRecentLimit   = 50
)

// DeadLetters stores events the publisher stopped retrying.
type DeadLetters struct {
	db *gorm.DB
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db}
}

// InsertTx writes letter inside tx, next to the terminal update of the
// outbox row it was copied from.
func (d *DeadLetters) InsertTx(tx *gorm.DB, letter models.DeadLetter) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !letter.Reason.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "unknown dead letter reason %q", letter.Reason)
	}
	if letter.ID == uuid.Nil {
		letter.ID = uuid.New()
	}
	if letter.FailedAt.IsZero() {
		letter.FailedAt = time.Now().UTC()
	}
	if letter.Message != nil && len(*letter.Message) > maxDeadLetterMessage {
		msg := (*letter.Message)[:maxDeadLetterMessage]
		letter.Message = &msg
	}
	return tx.Create(&letter).Error
}

// ForEvent returns the dead letter recorded for an outbox event.
func (d *DeadLetters) ForEvent(ctx context.Context, eventID uuid.UUID) (*models.DeadLetter, error) {
	var letter models.DeadLetter
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).First(&letter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no dead letter for event")
	}
	if err != nil {
		return nil, err
	}
	return &letter, nil
}

// Recent lists the newest dead letters first.
func (d *DeadLetters) Recent(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var rows []models.DeadLetter
	err := d.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// CountByReason tallies dead letters per reason. Reasons with no rows are absent.
func (d *DeadLetters) CountByReason(ctx context.Context) (map[enums.DeadLetterReason]int64, error) {
	var rows []struct {
		Reason enums.DeadLetterReason
		Total  int64
	}
	err := d.db.WithContext(ctx).
		Model(&models.DeadLetter{}).
		Select("error_reason AS reason, COUNT(*) AS total").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.DeadLetterReason]int64, len(rows))
	for _, row := range rows {
		out[row.Reason] = row.Total
	}
	return out, nil
}
