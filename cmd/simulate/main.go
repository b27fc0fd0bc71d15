package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/backend"
	"checkout-orchestrator/internal/infrastructure/payment"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/repo"
	"checkout-orchestrator/internal/service"
	"checkout-orchestrator/internal/service/adapter"
	"checkout-orchestrator/internal/worker"
)

func main() {
	n := flag.Int("n", 20, "number of checkouts")
	phantom := flag.Int("phantom", 15, "percent of order calls that persist but time out")
	flag.Parse()

	logger.Init("warn", "text")
	ctx := context.Background()

	drafts := repo.NewMemoryDraftRepo()
	journal := repo.NewMemoryFinalizationRepo()
	orders := backend.NewMockOrderAPI(*phantom)
	gw := payment.NewMockGateway(payment.WithRandomOutcomes(), payment.WithLatency(10*time.Millisecond))

	selector := service.NewSelector()
	checkout := service.NewCheckoutService(
		drafts,
		selector,
		adapter.NewCard(gw, gw, "INR", time.Second),
		adapter.NewWallet(gw, "INR", time.Second),
		service.NewFinalizer(orders, journal, 500*time.Millisecond),
		"INR",
	)

	fmt.Printf("--- STARTING SIMULATION (%d CHECKOUTS) ---\n", *n)
	for i := 0; i < *n; i++ {
		sess := service.Session{
			ID:    fmt.Sprintf("sim-%03d", i+1),
			Buyer: domain.Buyer{ID: uuid.NewString(), Name: "Sim Buyer"},
		}
		drafts.Put(sess.ID, randomDraft(sess.Buyer.ID), domain.CartSnapshot{CapturedAt: time.Now()})

		method := domain.Methods[rand.IntN(len(domain.Methods))]
		fmt.Printf("[%d] %s paying by %s ... ", i+1, sess.ID, method)

		order, err := pay(ctx, checkout, sess, method)
		res := service.Route(order, err)
		switch res.State {
		case service.StateSuccess:
			fmt.Printf("SUCCESS -> %s\n", res.Redirect)
		default:
			fmt.Printf("%s (%s) %s\n", res.State, res.Kind, res.Message)
		}
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("orders persisted by backend: %d\n", orders.OrderCount())
	printJournal(journal)

	// Everything is stale from the worker's point of view.
	rw := worker.NewReconciliationWorker(journal, orders, time.Second, -time.Second, 100)
	report, err := rw.ProcessOnce(ctx)
	if err != nil {
		fmt.Printf("reconciliation failed: %v\n", err)
		return
	}
	fmt.Printf("--- RECONCILIATION: scanned=%d confirmed=%d needs_review=%d skipped=%d ---\n",
		report.Scanned, report.Confirmed, report.NeedsReview, report.Skipped)
	printJournal(journal)
}

func pay(ctx context.Context, checkout service.CheckoutService, sess service.Session, method domain.PaymentMethod) (*domain.Order, error) {
	if err := checkout.SelectMethod(ctx, sess, string(method)); err != nil {
		return nil, err
	}

	switch method {
	case domain.MethodCard:
		return checkout.SubmitCard(ctx, sess, payment.TokenSuccess)

	case domain.MethodWallet:
		wo, err := checkout.CreateWalletOrder(ctx, sess)
		if err != nil {
			return nil, err
		}
		// Some buyers close the approval popup.
		if rand.IntN(5) == 0 {
			return nil, checkout.CancelWallet(ctx, sess, wo.ProviderOrderID)
		}
		return checkout.ApproveWallet(ctx, sess, wo.ProviderOrderID)

	default:
		return checkout.ConfirmPayOnDelivery(ctx, sess)
	}
}

func randomDraft(buyerID string) domain.OrderDraft {
	qty := rand.IntN(3) + 1
	unit := decimal.New(int64(rand.IntN(90000)+100), -2)
	subtotal := unit.Mul(decimal.NewFromInt(int64(qty)))
	shipping := decimal.NewFromInt(24)
	tax := subtotal.Mul(decimal.RequireFromString("0.05")).Round(2)

	return domain.OrderDraft{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Cart: []domain.LineItem{
			{ProductID: "sku-" + uuid.NewString()[:8], Name: "Sim item", Quantity: qty, UnitPrice: unit},
		},
		ShippingAddress: domain.ShippingAddress{
			Name: "Sim Buyer", Line1: "42 Test Lane", City: "Pune", PostalCode: "411001", Country: "IN",
		},
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		TotalPrice:   subtotal.Add(shipping).Add(tax),
		Currency:     "INR",
		CreatedAt:    time.Now(),
	}
}

func printJournal(journal *repo.MemoryFinalizationRepo) {
	counts := map[domain.FinalizationStatus]int{}
	for _, f := range journal.All() {
		counts[f.Status]++
	}
	fmt.Printf("journal: confirmed=%d unconfirmed=%d pending=%d needs_review=%d\n",
		counts[domain.FinalizationConfirmed],
		counts[domain.FinalizationUnconfirmed],
		counts[domain.FinalizationPending],
		counts[domain.FinalizationNeedsReview],
	)
}
