package foliolog

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEventValidate(t *testing.T) {
	valid := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000))

	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{"valid trade", valid, ""},
		{"zero timestamp", NewTrade(time.Time{}, "NVDA", SideBuy, Q(50), usd(6000)), "timestamp"},
		{"no security", NewTrade(day(2025, 1, 10), "", SideBuy, Q(50), usd(6000)), "security"},
		{"bad side", NewTrade(day(2025, 1, 10), "NVDA", "hold", Q(50), usd(6000)), "side"},
		{"negative quantity", NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(-5), usd(6000)), "quantity"},
		{"negative dividend", NewDividend(day(2025, 1, 10), "NVDA", usd(-40)), "amount"},
		{"zero deposit", NewDeposit(day(2025, 1, 10), usd(0)), "amount"},
		{"empty prices", NewPriceUpdate(day(2025, 1, 10), "USD", nil), "prices"},
		{"empty note", NewNote(day(2025, 1, 10), "NVDA", ""), "note"},
		{"option close without open", NewOptionClose(day(2025, 1, 10), 0, usd(50)), "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestRationaleValidate(t *testing.T) {
	e := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000))

	ok := e.WithRationale(Rationale{Primary: "wheel entry", Confidence: 0.8})
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := e.WithRationale(Rationale{Primary: "wheel entry", Confidence: 1.5})
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate() accepted confidence 1.5")
	}

	empty := e.WithRationale(Rationale{Confidence: 0.8})
	if err := empty.Validate(); err == nil {
		t.Fatal("Validate() accepted a rationale without a primary reason")
	}
}

func TestCashImpactConventions(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  Money
	}{
		{"buy consumes cash", NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000)), usd(-6000)},
		{"sell releases cash", NewTrade(day(2025, 1, 10), "NVDA", SideSell, Q(50), usd(7000)), usd(7000)},
		{"short premium is received", NewOptionOpen(day(2025, 2, 3), OptionOpenPayload{
			Underlying: "NVDA", Right: RightPut, Short: true,
			Strike: usd(110), Contracts: Q(1), Premium: usd(250), Expiry: day(2025, 2, 21),
		}), usd(250)},
		{"long premium is paid", NewOptionOpen(day(2025, 2, 3), OptionOpenPayload{
			Underlying: "NVDA", Right: RightCall, Short: false,
			Strike: usd(110), Contracts: Q(1), Premium: usd(250), Expiry: day(2025, 2, 21),
		}), usd(-250)},
		{"close costs cash", NewOptionClose(day(2025, 2, 10), 3, usd(80)), usd(-80)},
		{"dividend is received", NewDividend(day(2025, 2, 14), "NVDA", usd(40)), usd(40)},
		{"withdraw consumes cash", NewWithdraw(day(2025, 3, 1), usd(500)), usd(-500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.event.CashImpact.Equal(tt.want) {
				t.Fatalf("CashImpact = %s, want %s", tt.event.CashImpact, tt.want)
			}
		})
	}
}

func TestEventEqual(t *testing.T) {
	a := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000))
	b := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000))
	if !a.Equal(b) {
		t.Fatal("identical trades are not Equal")
	}
	c := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(51), usd(6000))
	if a.Equal(c) {
		t.Fatal("trades with different quantities are Equal")
	}
	d := NewDividend(day(2025, 1, 10), "NVDA", usd(40))
	if a.Equal(d) {
		t.Fatal("events of different kinds are Equal")
	}
}

func TestTicker(t *testing.T) {
	if got := NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(1), usd(100)).Ticker(); got != "NVDA" {
		t.Fatalf("Ticker() = %q, want NVDA", got)
	}
	if got := NewDeposit(day(2025, 1, 2), usd(100)).Ticker(); got != "" {
		t.Fatalf("Ticker() = %q, want empty", got)
	}
	open := NewOptionOpen(day(2025, 2, 3), OptionOpenPayload{
		Underlying: "NVDA", Right: RightPut, Short: true,
		Strike: usd(110), Contracts: Q(1), Premium: usd(250), Expiry: day(2025, 2, 21),
	})
	if got := open.Ticker(); got != "NVDA" {
		t.Fatalf("Ticker() = %q, want NVDA", got)
	}
}

func TestPriceUpdateValidate(t *testing.T) {
	bad := NewPriceUpdate(day(2025, 2, 20), "USD", map[string]decimal.Decimal{
		"NVDA": decimal.NewFromInt(-5),
	})
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate() accepted a negative price")
	}
}
