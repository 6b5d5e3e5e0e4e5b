package cart

import (
	"math/rand"
	"testing"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

func product(id string, price domain.Money) domain.Product {
	return domain.Product{ID: domain.ProductID(id), Name: "Product " + id, Price: price, Images: []string{"https://img/" + id}}
}

func TestTotalMatchesLinesOverRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalogue := []domain.Product{product("1", 1999), product("2", 45000), product("3", 120), product("4", 7)}

	c := Clear()
	for step := 0; step < 2000; step++ {
		p := catalogue[rng.Intn(len(catalogue))]
		switch rng.Intn(5) {
		case 0, 1:
			c = Add(c, p, rng.Intn(4)-1)
		case 2:
			c = Remove(c, p.ID)
		case 3:
			c = UpdateQuantity(c, p.ID, rng.Intn(6)-2)
		case 4:
			c = Decrease(c, p.ID)
		}

		var want domain.Money
		for _, item := range c.Items {
			if item.Quantity < 1 {
				t.Fatalf("step %d: quantity %d below one for %s", step, item.Quantity, item.ProductID)
			}
			want += item.UnitPrice * domain.Money(item.Quantity)
		}
		if c.Total != want {
			t.Fatalf("step %d: total %d, want %d", step, c.Total, want)
		}
	}
}

func TestAddMergesSameProduct(t *testing.T) {
	p := product("7", 10)
	c := Add(Add(Clear(), p, 1), p, 2)

	if len(c.Items) != 1 {
		t.Fatalf("expected single line, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", c.Items[0].Quantity)
	}
	if c.Total != 30 {
		t.Fatalf("expected total 30, got %d", c.Total)
	}
	if c.Items[0].Image != "https://img/7" {
		t.Fatalf("expected first image used, got %q", c.Items[0].Image)
	}
}

func TestAddTreatsNonPositiveQuantityAsOne(t *testing.T) {
	c := Add(Clear(), product("1", 100), 0)
	if c.Items[0].Quantity != 1 || c.Total != 100 {
		t.Fatalf("unexpected cart %+v", c)
	}
}

func TestQuantityClampsAndRemoveDeletes(t *testing.T) {
	p := product("1", 250)
	c := Add(Clear(), p, 2)

	c = UpdateQuantity(c, p.ID, 0)
	if c.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity floored to 1, got %d", c.Items[0].Quantity)
	}
	c = UpdateQuantity(c, p.ID, -5)
	if c.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity floored to 1, got %d", c.Items[0].Quantity)
	}
	c = Decrease(c, p.ID)
	if len(c.Items) != 1 || c.Items[0].Quantity != 1 {
		t.Fatalf("expected decrease to stop at 1, got %+v", c.Items)
	}

	c = Remove(c, p.ID)
	if len(c.Items) != 0 || c.Total != 0 {
		t.Fatalf("expected empty cart after remove, got %+v", c)
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	c := Add(Clear(), product("1", 100), 2)
	for name, next := range map[string]domain.Cart{
		"remove":   Remove(c, "missing"),
		"update":   UpdateQuantity(c, "missing", 9),
		"decrease": Decrease(c, "missing"),
	} {
		if len(next.Items) != 1 || next.Items[0].Quantity != 2 || next.Total != 200 {
			t.Errorf("%s: expected unchanged cart, got %+v", name, next)
		}
	}
}

func TestTransitionsDoNotMutateInput(t *testing.T) {
	c := Add(Clear(), product("1", 100), 1)
	_ = UpdateQuantity(c, "1", 5)
	_ = Add(c, product("1", 100), 1)
	if c.Items[0].Quantity != 1 || c.Total != 100 {
		t.Fatalf("input cart mutated: %+v", c)
	}
}

func TestNormalizeRecomputesTotal(t *testing.T) {
	c := Normalize(domain.Cart{Items: []domain.CartItem{
		{ProductID: "7", UnitPrice: 10, Quantity: 2},
		{ProductID: "8", UnitPrice: 5, Quantity: 0},
	}, Total: 999})
	if c.Total != 25 {
		t.Fatalf("expected total 25, got %d", c.Total)
	}
	if c.Items[1].Quantity != 1 {
		t.Fatalf("expected quantity clamped, got %d", c.Items[1].Quantity)
	}
}
