package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"jewel-store/internal/cart"
	"jewel-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func newTestCartService(t *testing.T, side cart.SideStore, size int, products ...*domain.Product) CartService {
	t.Helper()
	svc, err := NewCartService(newMockProductRepository(products...), side, size, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCartService failed: %v", err)
	}
	return svc
}

func TestCartService_AddItemPricesFromCatalog(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, cart.NewMemorySideStore(), 10, ring)
	ctx := context.Background()
	sel := domain.Selection{"metal": "14K", "size": "7", "diamondType": "Natural"}

	c, err := svc.AddItem(ctx, "anon:a", ring.ID, sel, 1)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(c.Items))
	}
	line := c.Items[0]
	if line.UnitPrice != 144900 {
		t.Errorf("Expected unit price 144900, got %d", line.UnitPrice)
	}
	if line.DisplayName != "Solitaire Ring" || line.DisplayImage != "https://cdn.example.com/solitaire.jpg" {
		t.Errorf("Unexpected display fields %q %q", line.DisplayName, line.DisplayImage)
	}

	// Same variant with the dimensions supplied in another order merges
	c, err = svc.AddItem(ctx, "anon:a", ring.ID, domain.Selection{"diamondType": "Natural", "size": "7", "metal": "14K"}, 2)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Errorf("Expected one merged line of 3, got %+v", c.Items)
	}
	if c.Total() != 434700 {
		t.Errorf("Expected total 434700, got %d", c.Total())
	}
}

func TestCartService_AddItemRejectsBeforeMutating(t *testing.T) {
	ring := solitaireRing()
	side := cart.NewMemorySideStore()
	svc := newTestCartService(t, side, 10, ring)
	ctx := context.Background()

	tests := []struct {
		name     string
		id       uuid.UUID
		sel      domain.Selection
		quantity int
		want     error
	}{
		{"unknown product", uuid.New(), domain.Selection{}, 1, domain.ErrProductNotFound},
		{"incomplete", ring.ID, domain.Selection{"metal": "14K"}, 1, domain.ErrIncompleteSelection},
		{"bad quantity", ring.ID, domain.Selection{"metal": "14K", "size": "6", "diamondType": "Lab"}, 0, domain.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddItem(ctx, "anon:b", tt.id, tt.sel, tt.quantity); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	c, err := svc.Get(ctx, "anon:b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("Rejected adds must not change the cart, got %d lines", len(c.Items))
	}
}

func TestCartService_RemoveAndClear(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, cart.NewMemorySideStore(), 10, ring)
	ctx := context.Background()
	lab := domain.Selection{"metal": "14K", "size": "6", "diamondType": "Lab"}
	natural := domain.Selection{"metal": "14K", "size": "6", "diamondType": "Natural"}

	svc.AddItem(ctx, "user:1", ring.ID, lab, 1)
	svc.AddItem(ctx, "user:1", ring.ID, natural, 1)

	c, err := svc.RemoveItem(ctx, "user:1", ring.ID, lab.Signature())
	if err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].VariantSignature != natural.Signature() {
		t.Errorf("Expected only the natural variant left, got %+v", c.Items)
	}

	if err := svc.Clear(ctx, "user:1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	c, _ = svc.Get(ctx, "user:1")
	if len(c.Items) != 0 || c.Total() != 0 {
		t.Errorf("Expected empty cart after clear, got %+v", c.Items)
	}
}

func TestCartService_SessionsAreIsolated(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, cart.NewMemorySideStore(), 10, ring)
	ctx := context.Background()
	sel := domain.Selection{"metal": "18K", "size": "6", "diamondType": "Lab"}

	svc.AddItem(ctx, "anon:x", ring.ID, sel, 2)

	other, err := svc.Get(ctx, "anon:y")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(other.Items) != 0 {
		t.Errorf("Expected another session's cart to be empty, got %d lines", len(other.Items))
	}
}

func TestCartService_EvictedCartRehydrates(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, cart.NewMemorySideStore(), 1, ring)
	ctx := context.Background()
	sel := domain.Selection{"metal": "14K", "size": "7", "diamondType": "Lab"}

	if _, err := svc.AddItem(ctx, "anon:first", ring.ID, sel, 2); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	// Loading a second session evicts the first from the single-entry cache
	if _, err := svc.Get(ctx, "anon:second"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c, err := svc.Get(ctx, "anon:first")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 2 {
		t.Errorf("Expected cart rehydrated from the side-store, got %+v", c.Items)
	}
}

func TestCartService_PersistenceFailureSurfaces(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, &failingSideStore{failAfter: 0}, 10, ring)
	sel := domain.Selection{"metal": "14K", "size": "7", "diamondType": "Lab"}

	_, err := svc.AddItem(context.Background(), "anon:z", ring.ID, sel, 1)
	if !errors.Is(err, domain.ErrPersistenceFailure) {
		t.Fatalf("Expected ErrPersistenceFailure, got %v", err)
	}

	// The mutation stays applied in memory
	c, err := svc.Get(context.Background(), "anon:z")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(c.Items) != 1 {
		t.Errorf("Expected the line to stay in memory, got %d lines", len(c.Items))
	}
}

func TestCartService_ConcurrentFirstUseSharesOneStore(t *testing.T) {
	ring := solitaireRing()
	svc := newTestCartService(t, cart.NewMemorySideStore(), 100, ring)
	ctx := context.Background()
	sel := domain.Selection{"metal": "14K", "size": "6", "diamondType": "Lab"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.AddItem(ctx, "anon:race", ring.ID, sel, 1)
		}()
	}
	wg.Wait()

	c, _ := svc.Get(ctx, "anon:race")
	if len(c.Items) != 1 || c.Items[0].Quantity != 20 {
		t.Errorf("Expected a single line of 20, got %+v", c.Items)
	}
}

func TestCartService_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	side := newSlowLoadSideStore()
	svc := newTestCartService(t, side, 10)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(first, "anon:slow")
		firstErr <- err
	}()

	<-side.started
	cancel()

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(context.Background(), "anon:slow")
		secondErr <- err
	}()
	close(side.unblock)

	if err := <-secondErr; err != nil {
		t.Errorf("Waiting request failed because another caller left: %v", err)
	}
	if err := <-firstErr; err != nil {
		t.Errorf("Expected the load to finish for the cancelled caller too, got %v", err)
	}
}

func TestCartService_EvictionWhileInUseKeepsOneStore(t *testing.T) {
	ring := solitaireRing()
	side := newGatedSideStore("anon:a")
	svc := newTestCartService(t, side, 1, ring)
	ctx := context.Background()
	sel := domain.Selection{"metal": "14K", "size": "6", "diamondType": "Lab"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.AddItem(ctx, "anon:a", ring.ID, sel, 1); err != nil {
			t.Errorf("First AddItem failed: %v", err)
		}
	}()
	<-side.entered

	// Another session pushes anon:a out of the single-entry cache mid-save
	if _, err := svc.Get(ctx, "anon:b"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.AddItem(ctx, "anon:a", ring.ID, sel, 2); err != nil {
			t.Errorf("Second AddItem failed: %v", err)
		}
	}()
	close(side.gate)
	wg.Wait()

	c, err := svc.Get(ctx, "anon:a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Errorf("Expected one line of 3, got %+v", c.Items)
	}
	saved, err := side.LoadCart(ctx, "anon:a")
	if err != nil {
		t.Fatalf("LoadCart failed: %v", err)
	}
	if len(saved.Items) != 1 || saved.Items[0].Quantity != 3 {
		t.Errorf("Expected the saved snapshot to hold 3, got %+v", saved.Items)
	}
}

// Feature: cart, Property 1: Cart total equals the sum of priced lines
func TestProperty_CartTotalMatchesQuotes(t *testing.T) {
	ring := solitaireRing()
	catalog, _ := newTestCatalogService(ring)

	properties := gopter.NewProperties(nil)

	properties.Property("cart total is the sum of quoted line totals", prop.ForAll(
		func(metal, size, diamond string, quantities []int) bool {
			ctx := context.Background()
			svc := newTestCartService(t, cart.NewMemorySideStore(), 10, ring)
			sel := domain.Selection{"metal": metal, "size": size, "diamondType": diamond}

			var want domain.Money
			for _, q := range quantities {
				if _, err := svc.AddItem(ctx, "anon:p", ring.ID, sel, q); err != nil {
					return false
				}
				quote, err := catalog.Quote(ctx, ring.ID, sel, q)
				if err != nil {
					return false
				}
				want += quote.LineTotal
			}

			c, err := svc.Get(ctx, "anon:p")
			return err == nil && c.Total() == want
		},
		gen.OneConstOf("14K", "18K"),
		gen.OneConstOf("6", "7"),
		gen.OneConstOf("Lab", "Natural"),
		gen.SliceOfN(4, gen.IntRange(1, 5)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
