package orders

import (
	"github.com/google/uuid"
)

// ActorKind names who is driving a workflow change.
type ActorKind string

const (
	ActorBuyer  ActorKind = "buyer"
	ActorFarmer ActorKind = "farmer"
	ActorLedger ActorKind = "ledger"
	ActorSystem ActorKind = "system"
)

// Actor identifies the caller of a workflow operation. UserID is empty for the
// system actor; the ledger actor carries the paying buyer.
type Actor struct {
	Kind   ActorKind
	UserID uuid.UUID
}

func BuyerActor(userID uuid.UUID) Actor  { return Actor{Kind: ActorBuyer, UserID: userID} }
func FarmerActor(userID uuid.UUID) Actor { return Actor{Kind: ActorFarmer, UserID: userID} }
func LedgerActor(userID uuid.UUID) Actor { return Actor{Kind: ActorLedger, UserID: userID} }
func SystemActor() Actor                 { return Actor{Kind: ActorSystem} }

func (a Actor) userIDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
