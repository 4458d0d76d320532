package claim

import "github.com/shopspring/decimal"

// DefaultPayoutPercent applies when the doctor record carries no payout
// percentage of its own.
var DefaultPayoutPercent = decimal.NewFromInt(70)

var hundred = decimal.NewFromInt(100)

// Recompute derives the monetary fields from their inputs. Net is gross
// minus rejected; payout is the doctor's share of net, rounded half up to
// two decimals. Every monetary derivation in the package goes through here.
func Recompute(gross, rejected, payoutPercent decimal.Decimal) (net, payout decimal.Decimal) {
	net = gross.Sub(rejected)
	payout = net.Mul(payoutPercent).Div(hundred).Round(2)
	return net, payout
}
