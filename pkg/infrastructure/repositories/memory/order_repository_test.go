package memory

import (
	"testing"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

func TestOrderRepository_GetAggregates(t *testing.T) {
	repo := NewOrderRepository()
	_ = repo.LoadOrders([]*entities.CustomerOrder{
		{CustomerID: "C1", SKU: 20, Quantity: 100},
		{CustomerID: "C2", SKU: 20, Quantity: 50},
		{CustomerID: "C1", SKU: 20, Quantity: 25},
		{CustomerID: "C3", SKU: 10, Quantity: 40},
	})

	aggregates, err := repo.GetAggregates()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(aggregates) != 2 {
		t.Fatalf("Expected 2 aggregates, got %d", len(aggregates))
	}
	if aggregates[0].SKU != 10 || aggregates[0].TotalQuantity != 40 || aggregates[0].Customers != 1 {
		t.Errorf("Unexpected aggregate for SKU 10: %+v", aggregates[0])
	}
	if aggregates[1].SKU != 20 || aggregates[1].TotalQuantity != 175 || aggregates[1].Customers != 2 {
		t.Errorf("Unexpected aggregate for SKU 20: %+v", aggregates[1])
	}
}

func TestProductionRepository_SumsClasses(t *testing.T) {
	repo := NewProductionRepository()
	_ = repo.LoadProduction([]*entities.ClassProduction{
		{Class: "GRADE_A", Quantity: 600},
		{Class: "GRADE_B", Quantity: 200},
		{Class: "GRADE_A", Quantity: 400},
	})

	capacity, ok := repo.GetCapacity("GRADE_A")
	if !ok || capacity != 1000 {
		t.Errorf("Expected GRADE_A capacity 1000, got %g (found=%t)", capacity, ok)
	}
	if _, ok := repo.GetCapacity("GRADE_C"); ok {
		t.Error("Expected no capacity for unknown class")
	}

	rows, _ := repo.GetAllProduction()
	if len(rows) != 2 || rows[0].Class != "GRADE_A" {
		t.Errorf("Expected 2 sorted rows, got %+v", rows)
	}
}

func TestClassRepository_Unclassified(t *testing.T) {
	repo := NewClassRepository()
	_ = repo.LoadMappings([]*entities.ClassMapping{
		{SKU: 1, Class: "GRADE_A"},
		{SKU: 2, Class: "  "},
	})

	if repo.GetClass(1) != "GRADE_A" {
		t.Errorf("Expected GRADE_A, got %s", repo.GetClass(1))
	}
	if repo.GetClass(2) != entities.UnclassifiedClass {
		t.Errorf("Expected blank class to be unclassified, got %s", repo.GetClass(2))
	}
	if repo.GetClass(3) != entities.UnclassifiedClass {
		t.Errorf("Expected unmapped SKU to be unclassified, got %s", repo.GetClass(3))
	}
}
