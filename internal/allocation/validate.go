package allocation

import (
	"fmt"
	"slices"

	"github.com/mmynk/tripsplit/internal/money"
)

func validateRule(rule AllocationRule) error {
	r := rule.Rounding
	if !r.Precision.IsPositive() {
		return NewValidationError("rounding.precision", "must be greater than zero, got %s", r.Precision)
	}
	if r.Precision.LessThan(money.Unit(money.MaxDecimalPlaces)) {
		return NewValidationError("rounding.precision", "must be at least %s, got %s", money.Unit(money.MaxDecimalPlaces), r.Precision)
	}
	if !r.Mode.Valid() {
		return NewValidationError("rounding.mode", "unknown rounding mode %q", r.Mode)
	}
	if !r.DistributeRemainderTo.Valid() {
		return NewValidationError("rounding.distribute_remainder_to", "unknown remainder target %q", r.DistributeRemainderTo)
	}
	if rule.PercentBase != "" && !rule.PercentBase.valid() {
		return NewValidationError("percent_base", "unknown percent base %q", rule.PercentBase)
	}
	if rule.AbsoluteSplit != "" && !rule.AbsoluteSplit.valid() {
		return NewValidationError("absolute_split", "unknown split mode %q", rule.AbsoluteSplit)
	}
	return nil
}

func validateItems(items []LineItem) error {
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if !item.Quantity.IsPositive() {
			return NewValidationError(field+".quantity", "must be greater than zero, got %s", item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError(field+".unit_price", "must not be negative, got %s", item.UnitPrice)
		}
		for _, user := range assignees(item.Assignment) {
			if user == "" {
				return NewValidationError(field+".assignment.users", "participant id must not be empty")
			}
		}
		custom, ok := item.Assignment.(CustomAssignment)
		if !ok {
			continue
		}
		for user, weight := range custom.Shares {
			if !slices.Contains(custom.Users, user) {
				return NewValidationError(field+".assignment.shares", "%q has a share but is not assigned", user)
			}
			if weight.IsNegative() {
				return NewValidationError(field+".assignment.shares", "%q has negative weight %s", user, weight)
			}
		}
	}
	return nil
}

func validateExtras(extras Extras, rule AllocationRule) error {
	if err := validateCharge("extras.tax", extras.Tax, rule); err != nil {
		return err
	}
	if err := validateCharge("extras.tip", extras.Tip, rule); err != nil {
		return err
	}
	groups := []struct {
		name string
		list []Adjustment
	}{{"fees", extras.Fees}, {"discounts", extras.Discounts}}
	for _, g := range groups {
		name, list := g.name, g.list
		seen := make(map[string]bool, len(list))
		for i, adj := range list {
			field := fmt.Sprintf("extras.%s[%d]", name, i)
			if adj.ID == "" {
				return NewValidationError(field+".id", "is required")
			}
			if seen[adj.ID] {
				return NewValidationError(field+".id", "duplicate id %q", adj.ID)
			}
			seen[adj.ID] = true
			if adj.Charge == nil {
				return NewValidationError(field+".charge", "is required")
			}
			if err := validateCharge(field, adj.Charge, rule); err != nil {
				return err
			}
			if slices.Contains(adj.AssignedTo, "") {
				return NewValidationError(field+".assigned_to", "participant id must not be empty")
			}
		}
	}
	return nil
}

func validateCharge(field string, c Charge, rule AllocationRule) error {
	switch c := c.(type) {
	case nil:
		return nil
	case PercentCharge:
		if c.Value.IsNegative() {
			return NewValidationError(field+".value", "must not be negative, got %s", c.Value)
		}
		if c.Base == "" && rule.PercentBase == "" {
			return NewValidationError(field+".base", "percent extra needs a base and the rule declares none")
		}
		if c.Base != "" && !c.Base.valid() {
			return NewValidationError(field+".base", "unknown percent base %q", c.Base)
		}
	case AmountCharge:
		if c.Value.IsNegative() {
			return NewValidationError(field+".value", "must not be negative, got %s", c.Value)
		}
		if c.Split != "" && !c.Split.valid() {
			return NewValidationError(field+".split", "unknown split mode %q", c.Split)
		}
	}
	return nil
}
