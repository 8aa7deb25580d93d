/*
Package lottery runs weighted point-prize draws on top of the ledger.

PURPOSE:
  A draw debits the entry cost through the ledger, then picks one prize from
  a weighted table and pays it through the Reward Dispatcher. Both legs are
  keyed to the draw ID, so a crash between debit and payout is recovered by
  replaying the same draw: the debit dedupes and the payout lands exactly
  once.

FAIRNESS:
  Weights are decimals so the prize table can express fine-grained odds
  (0.5 vs 12.25). ExpectedReturn reports the table's RTP (return-to-player)
  relative to the entry cost; operators keep it below 1 unless the lottery
  is meant as a subsidy.

SEE ALSO:
  - reward/dispatcher.go: The payout leg
  - ledger/ledger.go: The debit leg
*/
package lottery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/reward"
)

const (
	reasonEntry = "lottery_entry"
)

// ErrNoPrizes is returned when the prize table is empty or has zero total
// weight.
var ErrNoPrizes = errors.New("lottery has no drawable prizes")

// Prize is one row of the weighted table. Amount 0 is a valid "blank".
type Prize struct {
	Name   string
	Amount int64
	Weight decimal.Decimal
}

// DrawResult reports one resolved draw.
type DrawResult struct {
	DrawID string
	Prize  Prize
	// Noop is true when this draw ID had already been paid out.
	Noop bool
}

// Lottery draws prizes for an entry cost.
type Lottery struct {
	dispatcher *reward.Dispatcher
	prizes     []Prize
	cost       int64
}

// New creates a lottery. cost must be positive; the table must have
// positive total weight.
func New(d *reward.Dispatcher, prizes []Prize, cost int64) (*Lottery, error) {
	if cost <= 0 {
		return nil, fmt.Errorf("entry cost %d: %w", cost, ledger.ErrInvalidAmount)
	}
	if totalWeight(prizes).Sign() <= 0 {
		return nil, ErrNoPrizes
	}
	return &Lottery{
		dispatcher: d,
		prizes:     prizes,
		cost:       cost,
	}, nil
}

// Cost returns the entry cost in points.
func (lo *Lottery) Cost() int64 { return lo.cost }

// Draw runs one draw for the user: debit entry cost, pick a prize, pay it.
// Fails with ErrInsufficientBalance (nothing persisted) when the user
// cannot cover the entry cost.
func (lo *Lottery) Draw(ctx context.Context, user ledger.UserID) (DrawResult, error) {
	return lo.Replay(ctx, user, uuid.NewString())
}

// Replay re-runs a draw under a known draw ID. Both ledger legs are keyed
// to the ID, so replaying a finished draw is a no-op and replaying a draw
// that debited but never paid completes the payout.
func (lo *Lottery) Replay(ctx context.Context, user ledger.UserID, drawID string) (DrawResult, error) {
	debit, err := lo.dispatcher.Penalize(ctx, user, reasonEntry, lo.cost, drawID)
	if err != nil {
		return DrawResult{}, fmt.Errorf("lottery entry: %w", err)
	}

	prize := lo.pick(drawID)
	result := DrawResult{DrawID: drawID, Prize: prize, Noop: debit.Noop}

	if prize.Amount > 0 {
		payout, err := lo.dispatcher.Award(ctx, user, reward.ActionLotteryPrize, prize.Amount, drawID)
		if err != nil {
			return DrawResult{}, fmt.Errorf("lottery payout: %w", err)
		}
		result.Noop = result.Noop && payout.Noop
	}
	return result, nil
}

// pick selects a prize. The selection is derived from the draw ID so that
// replaying a draw resolves to the same prize it originally hit.
func (lo *Lottery) pick(drawID string) Prize {
	total := totalWeight(lo.prizes)

	// A deterministic point in [0, total) from the draw ID.
	var seed int64
	for _, b := range []byte(drawID) {
		seed = seed*131 + int64(b)
	}
	if seed < 0 {
		seed = -seed
	}
	r := rand.New(rand.NewSource(seed))
	point := decimal.NewFromFloat(r.Float64()).Mul(total)

	cum := decimal.Zero
	var last Prize
	for _, p := range lo.prizes {
		if p.Weight.Sign() <= 0 {
			continue
		}
		cum = cum.Add(p.Weight)
		if point.LessThan(cum) {
			return p
		}
		last = p
	}
	// Rounding can push the point to exactly the total weight; that edge
	// belongs to the last drawable prize, never to a zero-weight row.
	return last
}

// ExpectedReturn is the mean payout divided by the entry cost.
func (lo *Lottery) ExpectedReturn() decimal.Decimal {
	total := totalWeight(lo.prizes)
	if total.Sign() <= 0 {
		return decimal.Zero
	}
	mean := decimal.Zero
	for _, p := range lo.prizes {
		if p.Weight.Sign() <= 0 {
			continue
		}
		mean = mean.Add(p.Weight.Mul(decimal.NewFromInt(p.Amount)))
	}
	return mean.Div(total).Div(decimal.NewFromInt(lo.cost))
}

func totalWeight(prizes []Prize) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prizes {
		if p.Weight.Sign() > 0 {
			total = total.Add(p.Weight)
		}
	}
	return total
}

// DefaultPrizes is a sample table with an expected return under the entry
// cost of DefaultCost.
var DefaultPrizes = []Prize{
	{Name: "jackpot", Amount: 100, Weight: decimal.NewFromFloat(0.5)},
	{Name: "big", Amount: 25, Weight: decimal.NewFromFloat(4)},
	{Name: "small", Amount: 10, Weight: decimal.NewFromFloat(20)},
	{Name: "blank", Amount: 0, Weight: decimal.NewFromFloat(75.5)},
}

// DefaultCost is the sample entry cost matching DefaultPrizes.
const DefaultCost int64 = 10
