package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/dbtest"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
)

type fixture struct {
	conn       *gorm.DB
	svc        Service
	buyer      *models.User
	farmerUser *models.User
	product    *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), outbox.NewService(outbox.NewRepository(conn), logger.Nop()))
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	farmerUser, farmer := dbtest.MustCreateFarmer(t, conn)
	return &fixture{
		conn:       conn,
		svc:        svc,
		buyer:      dbtest.MustCreateUser(t, conn, enums.UserTypeBuyer),
		farmerUser: farmerUser,
		product:    dbtest.MustCreateProduct(t, conn, farmer.ID, "4.00", 3),
	}
}

func strPtr(s string) *string { return &s }

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestStartConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.StartConversation(ctx, f.buyer.ID, StartInput{ProductID: f.product.ID, FirstMessage: strPtr(" Are these organic? ")})
	require.NoError(t, err)
	assert.Equal(t, f.buyer.ID, first.BuyerID)
	assert.Equal(t, f.farmerUser.ID, first.FarmerID)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "Are these organic?", first.Messages[0].Content)

	again, err := f.svc.StartConversation(ctx, f.buyer.ID, StartInput{ProductID: f.product.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.Conversation{}))
}

func TestStartConversationRejectsOwnProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StartConversation(context.Background(), f.farmerUser.ID, StartInput{ProductID: f.product.ID})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.StartConversation(context.Background(), f.buyer.ID, StartInput{ProductID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSendMessageEmitsOnlyForBuyers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.svc.StartConversation(ctx, f.buyer.ID, StartInput{ProductID: f.product.ID})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, f.buyer.ID, conv.ID, "Do you deliver?")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, f.farmerUser.ID, conv.ID, "Saturdays only")
	require.NoError(t, err)
	_, err = f.svc.SendAutomatedMessage(ctx, AutomatedInput{ConversationID: conv.ID, Content: "Thanks for reaching out!"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.OutboxEvent{}, "event_type = ?", enums.EventMessageSent))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.Message{}, "is_automated = ? AND sender_id = ?", true, f.farmerUser.ID))
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.svc.StartConversation(ctx, f.buyer.ID, StartInput{ProductID: f.product.ID})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, f.buyer.ID, conv.ID, "   ")
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.SendMessage(ctx, f.buyer.ID, conv.ID, strings.Repeat("a", MaxContentLength+1))
	requireCode(t, err, pkgerrors.CodeValidation)

	stranger := dbtest.MustCreateUser(t, f.conn, enums.UserTypeBuyer)
	_, err = f.svc.SendMessage(ctx, stranger.ID, conv.ID, "hello")
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.SendAutomatedMessage(ctx, AutomatedInput{ConversationID: uuid.New(), Content: "hi"})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.svc.StartConversation(ctx, f.buyer.ID, StartInput{ProductID: f.product.ID, FirstMessage: strPtr("one")})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, f.buyer.ID, conv.ID, "two")
	require.NoError(t, err)

	unread, err := f.svc.UnreadCount(ctx, f.farmerUser.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread.Unread)

	buyerUnread, err := f.svc.UnreadCount(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, buyerUnread.Unread)

	list, err := f.svc.ListConversations(ctx, f.farmerUser.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 2, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "two", list[0].LastMessage.Content)
	assert.Equal(t, f.product.Name, list[0].ProductName)

	detail, err := f.svc.GetConversation(ctx, f.farmerUser.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "one", detail.Messages[0].Content)
	assert.Equal(t, "two", detail.Messages[1].Content)

	unread, err = f.svc.UnreadCount(ctx, f.farmerUser.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread.Unread)
}
