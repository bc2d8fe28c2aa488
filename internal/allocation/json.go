package allocation

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Wire shapes keep the discriminants ("mode", "type") at the JSON boundary
// only; in Go the variants are distinct types.

type assignmentJSON struct {
	Mode   string                     `json:"mode"`
	Users  []string                   `json:"users"`
	Shares map[string]decimal.Decimal `json:"shares,omitempty"`
}

type lineItemJSON struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Taxable           bool            `json:"taxable"`
	ServiceChargeable bool            `json:"service_chargeable"`
	Assignment        *assignmentJSON `json:"assignment,omitempty"`
}

type chargeJSON struct {
	Type  string            `json:"type"`
	Value decimal.Decimal   `json:"value"`
	Base  PercentBase       `json:"base,omitempty"`
	Split AbsoluteSplitMode `json:"split,omitempty"`
}

type adjustmentJSON struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Charge     *chargeJSON `json:"charge"`
	AssignedTo []string    `json:"assigned_to,omitempty"`
}

type extrasJSON struct {
	Tax       *chargeJSON  `json:"tax,omitempty"`
	Tip       *chargeJSON  `json:"tip,omitempty"`
	Fees      []Adjustment `json:"fees,omitempty"`
	Discounts []Adjustment `json:"discounts,omitempty"`
}

func (i LineItem) MarshalJSON() ([]byte, error) {
	out := lineItemJSON{
		ID:                i.ID,
		Name:              i.Name,
		Quantity:          i.Quantity,
		UnitPrice:         i.UnitPrice,
		Taxable:           i.Taxable,
		ServiceChargeable: i.ServiceChargeable,
	}
	switch a := i.Assignment.(type) {
	case EvenAssignment:
		out.Assignment = &assignmentJSON{Mode: "even", Users: a.Users}
	case CustomAssignment:
		out.Assignment = &assignmentJSON{Mode: "custom", Users: a.Users, Shares: a.Shares}
	}
	return json.Marshal(out)
}

func (i *LineItem) UnmarshalJSON(data []byte) error {
	var in lineItemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*i = LineItem{
		ID:                in.ID,
		Name:              in.Name,
		Quantity:          in.Quantity,
		UnitPrice:         in.UnitPrice,
		Taxable:           in.Taxable,
		ServiceChargeable: in.ServiceChargeable,
	}
	if in.Assignment == nil {
		return nil
	}
	switch in.Assignment.Mode {
	case "even":
		i.Assignment = EvenAssignment{Users: in.Assignment.Users}
	case "custom":
		i.Assignment = CustomAssignment{Users: in.Assignment.Users, Shares: in.Assignment.Shares}
	default:
		return fmt.Errorf("item %q: unknown assignment mode %q", in.ID, in.Assignment.Mode)
	}
	return nil
}

func encodeCharge(c Charge) *chargeJSON {
	switch c := c.(type) {
	case PercentCharge:
		return &chargeJSON{Type: "percent", Value: c.Value, Base: c.Base}
	case AmountCharge:
		return &chargeJSON{Type: "amount", Value: c.Value, Split: c.Split}
	}
	return nil
}

func decodeCharge(in *chargeJSON) (Charge, error) {
	if in == nil {
		return nil, nil
	}
	switch in.Type {
	case "percent":
		return PercentCharge{Value: in.Value, Base: in.Base}, nil
	case "amount":
		return AmountCharge{Value: in.Value, Split: in.Split}, nil
	}
	return nil, fmt.Errorf("unknown charge type %q", in.Type)
}

func (a Adjustment) MarshalJSON() ([]byte, error) {
	return json.Marshal(adjustmentJSON{
		ID:         a.ID,
		Name:       a.Name,
		Charge:     encodeCharge(a.Charge),
		AssignedTo: a.AssignedTo,
	})
}

func (a *Adjustment) UnmarshalJSON(data []byte) error {
	var in adjustmentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	charge, err := decodeCharge(in.Charge)
	if err != nil {
		return fmt.Errorf("adjustment %q: %w", in.ID, err)
	}
	*a = Adjustment{ID: in.ID, Name: in.Name, Charge: charge, AssignedTo: in.AssignedTo}
	return nil
}

func (e Extras) MarshalJSON() ([]byte, error) {
	return json.Marshal(extrasJSON{
		Tax:       encodeCharge(e.Tax),
		Tip:       encodeCharge(e.Tip),
		Fees:      e.Fees,
		Discounts: e.Discounts,
	})
}

func (e *Extras) UnmarshalJSON(data []byte) error {
	var in extrasJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	tax, err := decodeCharge(in.Tax)
	if err != nil {
		return fmt.Errorf("tax: %w", err)
	}
	tip, err := decodeCharge(in.Tip)
	if err != nil {
		return fmt.Errorf("tip: %w", err)
	}
	*e = Extras{Tax: tax, Tip: tip, Fees: in.Fees, Discounts: in.Discounts}
	return nil
}
