package consequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/stripe"
)

// MonetaryAdapter moves the stake to a whitelisted charity.
type MonetaryAdapter struct {
	log       *logger.Logger
	payments  stripe.Client
	users     accounts.UserRepo
	charities *Charities
}

func NewMonetaryAdapter(log *logger.Logger, payments stripe.Client, users accounts.UserRepo, charities *Charities) *MonetaryAdapter {
	return &MonetaryAdapter{
		log:       log.With("component", "MonetaryAdapter"),
		payments:  payments,
		users:     users,
		charities: charities,
	}
}

func (a *MonetaryAdapter) Type() types.ConsequenceType { return types.ConsequenceMonetary }

func (a *MonetaryAdapter) Execute(ctx context.Context, req Request) (*Details, error) {
	it := req.Item
	d := &Details{Kind: types.ConsequenceMonetary, Monetary: &MonetaryDetails{
		AmountCents: it.StakeCents,
		CharityID:   it.CharityID,
	}}
	dbc := dbctx.Context{Ctx: ctx}

	if it.StakeCents <= 0 {
		return d, precondition(types.ConsequenceMonetary, "stake must be positive, got %d", it.StakeCents)
	}
	charity, ok := a.charities.Lookup(it.CharityID)
	if !ok {
		return d, precondition(types.ConsequenceMonetary, "charity %q is not supported", it.CharityID)
	}
	u, err := a.users.GetByID(dbc, it.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return d, precondition(types.ConsequenceMonetary, "user not found")
		}
		return d, err
	}
	if u.BalanceCents < it.StakeCents {
		return d, precondition(types.ConsequenceMonetary, "balance %d is below stake %d", u.BalanceCents, it.StakeCents)
	}

	tr, err := a.payments.Transfer(ctx, stripe.TransferRequest{
		AmountCents:    it.StakeCents,
		Destination:    charity.Destination,
		Memo:           fmt.Sprintf("Forfeit stake for %q", it.GoalTitle),
		IdempotencyKey: "forfeit:" + req.IdempotencyKey,
		Metadata: map[string]string{
			"item_kind":  string(it.FailureType),
			"item_id":    it.ItemID.String(),
			"charity_id": charity.ID,
		},
	})
	if err != nil {
		return d, fmt.Errorf("transfer: %w", err)
	}
	d.Monetary.TransferID = tr.ID
	d.Monetary.Currency = tr.Currency

	// The transfer stands even if the cached balance cannot follow it.
	debited, err := a.users.DebitBalance(dbc, it.UserID, it.StakeCents)
	switch {
	case err != nil:
		a.log.Warn("Balance debit failed after transfer", "transfer_id", tr.ID, "user_id", it.UserID, "error", err)
		d.warn("balance debit failed: " + err.Error())
	case !debited:
		a.log.Warn("Balance too low to debit after transfer", "transfer_id", tr.ID, "user_id", it.UserID)
		d.warn("balance not debited: insufficient tracked balance at debit time")
	default:
		d.Monetary.BalanceDebited = true
	}
	return d, nil
}
