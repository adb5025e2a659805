package models

import (
	"encoding/json"
	"errors"
)

type ItemTag string

const (
	ItemTagPrimaryItem    ItemTag = "PRIMARY_ITEM"
	ItemTagComposedRecipe ItemTag = "COMPOSED_RECIPE"
	ItemTagRawMaterial    ItemTag = "RAW_MATERIAL"
	ItemTagSupplement     ItemTag = "SUPPLEMENT"
	ItemTagOption         ItemTag = "OPTION"
)

func (t ItemTag) IsValid() bool {
	switch t {
	case ItemTagPrimaryItem, ItemTagComposedRecipe, ItemTagRawMaterial, ItemTagSupplement, ItemTagOption:
		return true
	}
	return false
}

// convert input to enum type
func (t *ItemTag) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("item tag must be string")
	}
	if !ItemTag(str).IsValid() {
		return errors.New("invalid item tag")
	}
	*t = ItemTag(str)
	return nil
}

type Unit string

const (
	UnitGramme     Unit = "gramme"
	UnitKg         Unit = "Kg"
	UnitPortion    Unit = "portion"
	UnitLiter      Unit = "liter"
	UnitMilliliter Unit = "milliliter"
)

func (u Unit) IsValid() bool {
	switch u {
	case UnitGramme, UnitKg, UnitPortion, UnitLiter, UnitMilliliter:
		return true
	}
	return false
}

func (u *Unit) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("unit must be string")
	}
	if !Unit(str).IsValid() {
		return errors.New("invalid unit")
	}
	*u = Unit(str)
	return nil
}

type OrderStatus string

const (
	OrderStatusInitialized        OrderStatus = "INITIALIZED"
	OrderStatusConfirmed          OrderStatus = "CONFIRMED"
	OrderStatusWaitingToBePrinted OrderStatus = "WAITING_TO_BE_PRINTED"
	OrderStatusPrinted            OrderStatus = "PRINTED"
	OrderStatusServed             OrderStatus = "SERVED"
	OrderStatusPaid               OrderStatus = "PAID"
)

// lifecycle order; index doubles as the rank used by strict transitions
var orderStatusSequence = []OrderStatus{
	OrderStatusInitialized,
	OrderStatusConfirmed,
	OrderStatusWaitingToBePrinted,
	OrderStatusPrinted,
	OrderStatusServed,
	OrderStatusPaid,
}

func (s OrderStatus) IsValid() bool {
	return s.rank() >= 0
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid
}

func (s OrderStatus) rank() int {
	for i, v := range orderStatusSequence {
		if v == s {
			return i
		}
	}
	return -1
}

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("order status must be string")
	}
	if !OrderStatus(str).IsValid() {
		return errors.New("invalid order status")
	}
	*s = OrderStatus(str)
	return nil
}

type EatingTableType string

const (
	EatingTableTypeTakeaway  EatingTableType = "TAKEAWAY"
	EatingTableTypeEmployees EatingTableType = "EMPLOYEES"
	EatingTableTypeWast      EatingTableType = "WAST"
	EatingTableTypeGift      EatingTableType = "GIFT"
)

func (t EatingTableType) IsValid() bool {
	switch t {
	case EatingTableTypeTakeaway, EatingTableTypeEmployees, EatingTableTypeWast, EatingTableTypeGift:
		return true
	}
	return false
}

func (t *EatingTableType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("eating table type must be string")
	}
	if !EatingTableType(str).IsValid() {
		return errors.New("invalid eating table type")
	}
	*t = EatingTableType(str)
	return nil
}

type PriceType string

const (
	PriceTypeSelling PriceType = "selling"
	PriceTypeBuying  PriceType = "buying"
)

func (t PriceType) IsValid() bool {
	return t == PriceTypeSelling || t == PriceTypeBuying
}

// Staff roles carried in identity tokens.
const (
	RoleRoot   = "ROOT"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

const EventTypeOrderConfirmed = "ORDER_CONFIRMED"
