package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// SKUCode represents a unique product code
type SKUCode int64

// ParseSKUCode parses a SKU code cell, tolerating a trailing ".0" left by spreadsheet exports
func ParseSKUCode(raw string) (SKUCode, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return 0, fmt.Errorf("sku code cannot be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sku code %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("sku code must be positive, got %d", v)
	}
	return SKUCode(v), nil
}

// PackageDescriptor represents the physical packaging of a SKU: boxes of inner packs of units
type PackageDescriptor struct {
	InnerPacks   int
	UnitsPerPack int
}

// NewPackageDescriptor creates a validated PackageDescriptor
func NewPackageDescriptor(innerPacks, unitsPerPack int) (PackageDescriptor, error) {
	if innerPacks <= 0 {
		return PackageDescriptor{}, fmt.Errorf("inner pack count must be positive, got %d", innerPacks)
	}
	if unitsPerPack <= 0 {
		return PackageDescriptor{}, fmt.Errorf("units per pack must be positive, got %d", unitsPerPack)
	}
	return PackageDescriptor{InnerPacks: innerPacks, UnitsPerPack: unitsPerPack}, nil
}

// ParsePackageDescriptor parses the canonical "CX <n> BJ <m> UN" form.
// The compact "<n>x<m>" form is accepted as well.
func ParsePackageDescriptor(raw string) (PackageDescriptor, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return PackageDescriptor{}, fmt.Errorf("package descriptor cannot be empty")
	}

	fields := strings.Fields(s)
	if len(fields) == 5 && fields[0] == "CX" && fields[2] == "BJ" && fields[4] == "UN" {
		inner, err1 := strconv.Atoi(fields[1])
		units, err2 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil {
			return PackageDescriptor{}, fmt.Errorf("invalid package descriptor %q", raw)
		}
		return NewPackageDescriptor(inner, units)
	}

	if parts := strings.Split(s, "X"); len(parts) == 2 {
		inner, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		units, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil {
			return NewPackageDescriptor(inner, units)
		}
	}

	return PackageDescriptor{}, fmt.Errorf("invalid package descriptor %q (expected \"CX <n> BJ <m> UN\")", raw)
}

// String returns the canonical text form
func (p PackageDescriptor) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("CX %d BJ %d UN", p.InnerPacks, p.UnitsPerPack)
}

// Units returns the number of single units in one package
func (p PackageDescriptor) Units() int {
	return p.InnerPacks * p.UnitsPerPack
}

// IsZero reports whether the descriptor is unset
func (p PackageDescriptor) IsZero() bool {
	return p.InnerPacks == 0 && p.UnitsPerPack == 0
}

// ItemID identifies one allocation unit: a SKU sold under one package descriptor
type ItemID struct {
	SKU     SKUCode
	Package PackageDescriptor
}

// NewItemID creates an ItemID
func NewItemID(sku SKUCode, pkg PackageDescriptor) ItemID {
	return ItemID{SKU: sku, Package: pkg}
}

// String returns "<sku>|<package>", or just "<sku>" for SKU-level rows
func (id ItemID) String() string {
	if id.Package.IsZero() {
		return strconv.FormatInt(int64(id.SKU), 10)
	}
	return fmt.Sprintf("%d|%s", id.SKU, id.Package)
}

// Less orders item ids by SKU, then by package size
func (id ItemID) Less(other ItemID) bool {
	if id.SKU != other.SKU {
		return id.SKU < other.SKU
	}
	if id.Package.InnerPacks != other.Package.InnerPacks {
		return id.Package.InnerPacks < other.Package.InnerPacks
	}
	return id.Package.UnitsPerPack < other.Package.UnitsPerPack
}

// MarshalText renders the canonical text form
func (p PackageDescriptor) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// MarshalText renders the canonical "<sku>|<package>" form
func (id ItemID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
