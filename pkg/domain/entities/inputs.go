package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClassProduction represents the daily production available to one class
type ClassProduction struct {
	Class    string
	Quantity float64
}

// NewClassProduction creates a validated ClassProduction
func NewClassProduction(class string, quantity float64) (*ClassProduction, error) {
	if class == "" {
		return nil, fmt.Errorf("class cannot be empty")
	}
	if quantity < 0 {
		return nil, fmt.Errorf("production quantity cannot be negative, got %g", quantity)
	}
	return &ClassProduction{Class: class, Quantity: quantity}, nil
}

// ClassMapping assigns a SKU to its product class
type ClassMapping struct {
	SKU   SKUCode
	Class string
}

// PriceRecord represents the selling price of one item
type PriceRecord struct {
	SKU     SKUCode
	Package PackageDescriptor
	Price   decimal.Decimal
}

// ItemID returns the item the price applies to
func (p PriceRecord) ItemID() ItemID {
	return NewItemID(p.SKU, p.Package)
}

// CostRecord represents the unit cost of one item
type CostRecord struct {
	SKU      SKUCode
	Package  PackageDescriptor
	UnitCost decimal.Decimal
}

// ItemID returns the item the cost applies to
func (c CostRecord) ItemID() ItemID {
	return NewItemID(c.SKU, c.Package)
}

// CustomerOrder represents one customer's ordered quantity of a SKU
type CustomerOrder struct {
	CustomerID string
	SKU        SKUCode
	Quantity   float64
}

// NewCustomerOrder creates a validated CustomerOrder
func NewCustomerOrder(customerID string, sku SKUCode, quantity float64) (*CustomerOrder, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id cannot be empty")
	}
	if quantity < 0 {
		return nil, fmt.Errorf("order quantity cannot be negative, got %g", quantity)
	}
	return &CustomerOrder{CustomerID: customerID, SKU: sku, Quantity: quantity}, nil
}

// SalesRecord represents one historical sales transaction
type SalesRecord struct {
	SKU       SKUCode
	Timestamp time.Time
	Quantity  float64
}
