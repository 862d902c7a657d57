package invoicing

import (
	"fmt"
	"strings"

	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/shared"
)

// Validate checks the form. Field rules come from struct tags; the tax rate
// is checked here because it is not a plain number.
func (in GenerateInput) Validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if in.TaxRate.IsNegative() {
		return shared.Validation("taxRate must be greater than or equal to 0")
	}
	return nil
}

// Compute prices items at taxRate:
//
//	line total = quantity × unit price
//	subtotal   = Σ line totals
//	tax        = round(subtotal × taxRate / 100) to the minor unit
//	total      = subtotal + tax
//
// Amounts are integers in minor units so the result does not depend on item order.
// A line, subtotal, tax or total beyond money.MaxAmount is a ValidationError.
func Compute(items []ItemInput, taxRate money.Rate) (Totals, error) {
	input := GenerateInput{Items: normalizeItems(items), TaxRate: taxRate}
	if err := input.Validate(); err != nil {
		return Totals{}, err
	}

	totals := Totals{Lines: make([]Line, 0, len(input.Items))}
	for i, item := range input.Items {
		lineTotal, err := item.UnitPrice.MulQty(item.Quantity)
		if err != nil {
			return Totals{}, shared.Validation(fmt.Sprintf("items[%d]: %s", i, shared.UserSafeMessage(err)))
		}
		totals.Lines = append(totals.Lines, Line{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       lineTotal,
		})
		if totals.Subtotal, err = totals.Subtotal.Add(lineTotal); err != nil {
			return Totals{}, shared.Validation("subtotal: " + shared.UserSafeMessage(err))
		}
	}
	var err error
	if totals.Tax, err = taxRate.Apply(totals.Subtotal); err != nil {
		return Totals{}, shared.Validation("tax: " + shared.UserSafeMessage(err))
	}
	if totals.Total, err = totals.Subtotal.Add(totals.Tax); err != nil {
		return Totals{}, shared.Validation("total: " + shared.UserSafeMessage(err))
	}
	return totals, nil
}

func normalizeItems(items []ItemInput) []ItemInput {
	out := make([]ItemInput, len(items))
	for i, item := range items {
		item.Description = strings.TrimSpace(item.Description)
		out[i] = item
	}
	return out
}

// ComputeBalance derives what has been paid and what remains on inv.
// Overpayment is kept as Overpaid; Remaining never goes below zero. Paid
// saturates at money.MaxAmount, which still covers any in-range total.
func ComputeBalance(inv Invoice) Balance {
	amounts := make([]money.Amount, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		amounts = append(amounts, p.Amount)
	}
	paid, err := money.Sum(amounts...)
	if err != nil {
		paid = money.MaxAmount
	}
	bal := Balance{Total: inv.Total, Paid: paid, Settled: paid >= inv.Total}
	if diff := inv.Total.Sub(paid); diff.IsPositive() {
		bal.Remaining = diff
	} else {
		bal.Overpaid = money.Zero.Sub(diff)
	}
	return bal
}

// Matches reports whether inv carries the figures computed in t.
func (t Totals) Matches(inv Invoice) error {
	if inv.Subtotal != t.Subtotal || inv.Tax != t.Tax || inv.Total != t.Total {
		return fmt.Errorf("invoice %s totals %s/%s/%s differ from computed %s/%s/%s",
			inv.ID, inv.Subtotal, inv.Tax, inv.Total, t.Subtotal, t.Tax, t.Total)
	}
	return nil
}
