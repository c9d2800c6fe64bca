// Package reviews accepts verified-purchase product reviews.
package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/payloads"
	"github.com/farmconnect/farmconnect-backend/pkg/pagination"
)

const maxCommentLen = 2000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Service interface {
	SubmitReview(ctx context.Context, buyerID, productID uuid.UUID, input SubmitInput) (*ReviewDTO, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*pagination.Page[ReviewDTO], error)
	Eligibility(ctx context.Context, buyerID, productID uuid.UUID) (*EligibilityDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) SubmitReview(ctx context.Context, buyerID, productID uuid.UUID, input SubmitInput) (*ReviewDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	comment := normalizeComment(input.Comment)
	if comment != nil && len(*comment) > maxCommentLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment too long")
	}

	var review models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.ProductExists(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		reviewed, err := repo.Exists(ctx, buyerID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
		}
		if reviewed {
			return duplicateReview(productID)
		}

		purchased, err := repo.HasDeliveredPurchase(ctx, buyerID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
		}
		if !purchased {
			return pkgerrors.New(pkgerrors.CodeNotPurchased, "only buyers with a delivered order can review this product").
				WithDetails(map[string]any{"product_id": productID})
		}

		review = models.Review{
			ProductID: productID,
			BuyerID:   buyerID,
			Rating:    input.Rating,
			Comment:   comment,
		}
		if err := repo.Create(ctx, &review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateReview(productID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.UserTypeBuyer)},
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:  review.ID,
				ProductID: productID,
				BuyerID:   buyerID,
				Rating:    review.Rating,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := newReviewDTO(review)
	return &dto, nil
}

func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*pagination.Page[ReviewDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	found, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	rows, err := s.repo.ListForProduct(ctx, productID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	page := pagination.BuildPage(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	out := &pagination.Page[ReviewDTO]{
		Items:      make([]ReviewDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, r := range page.Items {
		out.Items = append(out.Items, newReviewDTO(r))
	}
	return out, nil
}

func (s *service) Eligibility(ctx context.Context, buyerID, productID uuid.UUID) (*EligibilityDTO, error) {
	reviewed, err := s.repo.Exists(ctx, buyerID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	purchased, err := s.repo.HasDeliveredPurchase(ctx, buyerID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
	}
	return &EligibilityDTO{
		CanReview:   purchased && !reviewed,
		HasReviewed: reviewed,
	}, nil
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func duplicateReview(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateReview, "you have already reviewed this product").
		WithDetails(map[string]any{"product_id": productID})
}
