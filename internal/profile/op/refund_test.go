package op

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
)

// purchaseFixture builds a common_core profile holding a recorded purchase
// and the item it granted.
func purchaseFixture(balance int, purchaseDate time.Time) *profile.Profile {
	p := newCoreProfile(balance, "PC")
	p.Items["emote-1"] = profile.NewItem("AthenaDance:eid_floss", nil, 1)
	history := p.MtxPurchaseHistory()
	history["purchases"] = []any{
		map[string]any{
			"purchaseId":   "purchase-1",
			"offerId":      "v2:/br-daily-emote-floss",
			"purchaseDate": purchaseDate.UTC().Format(time.RFC3339),
			"refundDate":   "",
			"totalMtxPaid": 500,
			"lootResult": []any{
				map[string]any{
					"itemType":    "AthenaDance:eid_floss",
					"itemGuid":    "emote-1",
					"itemProfile": profile.NamespaceCommonCore,
					"quantity":    1,
				},
			},
		},
	}
	return p
}

func TestRefundMtxPurchase(t *testing.T) {
	env, _ := testEnv(t)
	p := purchaseFixture(500, testTime.Add(-24*time.Hour))

	run(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-1"}`)

	if got := p.Items["mtx-1"].Quantity; got != 1000 {
		t.Fatalf("expected currency restored to 1000, got %d", got)
	}
	if p.Item("emote-1") != nil {
		t.Fatal("expected granted item removed")
	}
	history := p.MtxPurchaseHistory()
	if got := history["refundCredits"]; got != 2 {
		t.Fatalf("expected 2 refund credits left, got %v", got)
	}
	purchase := history["purchases"].([]any)[0].(map[string]any)
	if purchase["refundDate"] == "" {
		t.Fatal("expected refund date recorded")
	}
}

func TestRefundTwiceFails(t *testing.T) {
	env, _ := testEnv(t)
	p := purchaseFixture(500, testTime.Add(-24*time.Hour))

	run(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-1"}`)
	err := runErr(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-1"}`)
	wantCode(t, err, apperrors.CodeAlreadyRefunded)
}

func TestRefundWindow(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		code apperrors.Code
	}{
		{"at the boundary", 30 * 24 * time.Hour, ""},
		{"just past the boundary", 30*24*time.Hour + time.Minute, apperrors.CodeRefundPeriodExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, _ := testEnv(t)
			p := purchaseFixture(500, testTime.Add(-tc.age))

			err := runErr(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-1"}`)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("expected refund inside the window to succeed: %v", err)
				}
				return
			}
			wantCode(t, err, tc.code)
		})
	}
}

func TestRefundWithoutCredits(t *testing.T) {
	env, _ := testEnv(t)
	p := purchaseFixture(500, testTime.Add(-24*time.Hour))
	p.MtxPurchaseHistory()["refundCredits"] = 0

	err := runErr(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-1"}`)
	wantCode(t, err, apperrors.CodeNoRefundCreditsLeft)
}

func TestRefundUnknownPurchase(t *testing.T) {
	env, _ := testEnv(t)
	p := purchaseFixture(500, testTime.Add(-24*time.Hour))

	err := runErr(t, env, p, RefundMtxPurchase, `{"purchaseId":"nope"}`)
	wantCode(t, err, apperrors.CodeNotFound)
}

func TestRefundRemovesCrossProfileLoot(t *testing.T) {
	env, store := testEnv(t)
	athena := profile.New("acct", profile.NamespaceAthena)
	athena.Items["emote-2"] = profile.NewItem("AthenaDance:eid_floss", nil, 1)
	store.Seed(athena)

	p := newCoreProfile(500, "PC")
	history := p.MtxPurchaseHistory()
	history["purchases"] = []any{
		map[string]any{
			"purchaseId":   "purchase-2",
			"offerId":      "v2:/br-daily-emote-floss",
			"purchaseDate": testTime.Add(-time.Hour).UTC().Format(time.RFC3339),
			"refundDate":   "",
			"totalMtxPaid": 500,
			"lootResult": []any{
				map[string]any{
					"itemType":    "AthenaDance:eid_floss",
					"itemGuid":    "emote-2",
					"itemProfile": profile.NamespaceAthena,
					"quantity":    1,
				},
			},
		},
	}

	c := run(t, env, p, RefundMtxPurchase, `{"purchaseId":"purchase-2"}`)

	secondaries := c.Secondaries()
	if len(secondaries) != 1 {
		t.Fatalf("expected athena touched, got %d secondaries", len(secondaries))
	}
	if secondaries[0].Profile.Item("emote-2") != nil {
		t.Fatal("expected granted item removed from athena")
	}
	if secondaries[0].Log.Len() == 0 {
		t.Fatal("expected a removal record on the secondary log")
	}
}
