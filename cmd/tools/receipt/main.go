// Command receipt totals a transaction snapshot from a JSON file and
// prints the receipt breakdown. Useful for verifying pricing against
// hand-computed expectations without standing up the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/discount"
	"github.com/noah-isme/register-core/internal/engine"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/tender"
)

type lineInput struct {
	SKU                   string `json:"sku"`
	Description           string `json:"description"`
	UnitPriceCents        int64  `json:"unitPriceCents"`
	SalePriceCents        int64  `json:"salePriceCents"`
	QtyMilli              int64  `json:"qtyMilli"`
	SoldByWeight          bool   `json:"soldByWeight"`
	ContainerDepositCents int64  `json:"containerDepositCents"`
	TaxRates              []struct {
		Authority string `json:"authority"`
		RateBps   int64  `json:"rateBps"`
	} `json:"taxRates"`
	SnapEligible    bool  `json:"snapEligible"`
	FloorPriceCents int64 `json:"floorPriceCents"`
	FloorOverride   bool  `json:"floorOverride"`
	Discount        *struct {
		Kind        string `json:"kind"`
		PercentBps  int64  `json:"percentBps"`
		AmountCents int64  `json:"amountCents"`
	} `json:"discount"`
}

type snapshotInput struct {
	Lines    []lineInput `json:"lines"`
	Discount *struct {
		Kind        string `json:"kind"`
		PercentBps  int64  `json:"percentBps"`
		AmountCents int64  `json:"amountCents"`
	} `json:"discount"`
	Tenders []struct {
		Method      string `json:"method"`
		AmountCents int64  `json:"amountCents"`
	} `json:"tenders"`
}

func main() {
	path := flag.String("f", "", "path to the snapshot JSON file")
	flag.Parse()
	if *path == "" {
		log.Fatal("usage: receipt -f snapshot.json")
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read snapshot: %v", err)
	}
	var input snapshotInput
	if err := json.Unmarshal(raw, &input); err != nil {
		log.Fatalf("parse snapshot: %v", err)
	}

	totals, err := engine.Calculate(toSnapshot(input))
	if err != nil {
		log.Fatalf("calculate: %v", err)
	}

	printReceipt(totals)
}

func toSnapshot(input snapshotInput) engine.Snapshot {
	snapshot := engine.Snapshot{}
	for _, ln := range input.Lines {
		item := pricing.LineItem{
			ID:               uuid.New(),
			SKU:              ln.SKU,
			Description:      ln.Description,
			UnitPrice:        money.Cents(ln.UnitPriceCents),
			SalePrice:        money.Cents(ln.SalePriceCents),
			Qty:              money.Units(ln.QtyMilli),
			SoldByWeight:     ln.SoldByWeight,
			ContainerDeposit: money.Cents(ln.ContainerDepositCents),
			SnapEligible:     ln.SnapEligible,
			FloorPrice:       money.Cents(ln.FloorPriceCents),
			FloorOverride:    ln.FloorOverride,
		}
		for _, rate := range ln.TaxRates {
			item.TaxRates = append(item.TaxRates, pricing.TaxRate{Authority: rate.Authority, RateBps: rate.RateBps})
		}
		if ln.Discount != nil {
			item.Discount = &pricing.LineDiscount{
				Kind:       pricing.DiscountKind(ln.Discount.Kind),
				PercentBps: ln.Discount.PercentBps,
				Amount:     money.Cents(ln.Discount.AmountCents),
			}
		}
		snapshot.Lines = append(snapshot.Lines, item)
	}
	if input.Discount != nil {
		snapshot.Discount = &discount.Invoice{
			Kind:       discount.Kind(input.Discount.Kind),
			PercentBps: input.Discount.PercentBps,
			Amount:     money.Cents(input.Discount.AmountCents),
		}
	}
	for i, t := range input.Tenders {
		snapshot.Tenders = append(snapshot.Tenders, tender.Tender{
			Method: tender.Method(strings.ToLower(t.Method)),
			Amount: money.Cents(t.AmountCents),
			Seq:    i + 1,
		})
	}
	return snapshot
}

func printReceipt(totals engine.Totals) {
	for _, ln := range totals.Lines {
		desc := ln.Description
		if desc == "" {
			desc = ln.SKU
		}
		fmt.Printf("%-30s %10s\n", desc, ln.Subtotal.MoneyString())
		if ln.LineDiscount > 0 {
			fmt.Printf("  discount %21s %10s\n", "", ln.LineDiscount.Neg().MoneyString())
		}
		if ln.ContainerValue > 0 {
			fmt.Printf("  CRV %26s %10s\n", "", ln.ContainerValue.MoneyString())
		}
	}
	fmt.Println(strings.Repeat("-", 42))
	fmt.Printf("%-30s %10s\n", "SUBTOTAL", totals.Subtotal.MoneyString())
	if totals.InvoiceDiscount > 0 {
		fmt.Printf("%-30s %10s\n", "INVOICE DISCOUNT", totals.InvoiceDiscount.Neg().MoneyString())
	}
	if totals.ContainerTotal > 0 {
		fmt.Printf("%-30s %10s\n", "CRV", totals.ContainerTotal.MoneyString())
	}
	for _, at := range totals.TaxByAuthority {
		fmt.Printf("%-30s %10s\n", "TAX "+at.Authority, at.Amount.MoneyString())
	}
	fmt.Printf("%-30s %10s\n", "TOTAL", totals.GrandTotal.MoneyString())
	for _, step := range totals.Payments.Steps {
		fmt.Printf("%-30s %10s\n", strings.ToUpper(string(step.Tender.Method)), step.Applied.MoneyString())
	}
	if totals.Payments.ChangeDue > 0 {
		fmt.Printf("%-30s %10s\n", "CHANGE", totals.Payments.ChangeDue.MoneyString())
	}
	if totals.Savings > 0 {
		fmt.Printf("%-30s %10s\n", "YOU SAVED", totals.Savings.MoneyString())
	}
}
