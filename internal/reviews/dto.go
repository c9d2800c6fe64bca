package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
)

// SubmitInput is the body of a review submission.
type SubmitInput struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

type ReviewDTO struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	BuyerUsername string    `json:"buyer_username,omitempty"`
	Rating        int       `json:"rating"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EligibilityDTO tells the UI whether to offer the review form.
type EligibilityDTO struct {
	CanReview   bool `json:"can_review"`
	HasReviewed bool `json:"has_reviewed"`
}

func newReviewDTO(review models.Review) ReviewDTO {
	dto := ReviewDTO{
		ID:        review.ID,
		ProductID: review.ProductID,
		BuyerID:   review.BuyerID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
	}
	if review.Buyer != nil {
		dto.BuyerUsername = review.Buyer.Username
	}
	return dto
}
