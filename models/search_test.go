package models

import "testing"

func TestHasConcreteModel(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"", false},
		{"Будь-яка", false},
		{"Всі моделі", false},
		{"Camry", true},
	}
	for _, c := range cases {
		s := Search{ModelName: c.name}
		if got := s.HasConcreteModel(); got != c.want {
			t.Fatalf("HasConcreteModel(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCarComplete(t *testing.T) {
	car := Car{Location: "Київ", Gearbox: "Автомат", Fuel: "Бензин", Mileage: 120}
	if !car.Complete() {
		t.Fatal("expected complete")
	}
	car.Mileage = 0
	if car.Complete() {
		t.Fatal("zero mileage must count as incomplete")
	}
}
