package op

import (
	"testing"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// newCoreProfile builds a common_core document holding one premium currency
// stack.
func newCoreProfile(balance int, platform string) *profile.Profile {
	p := profile.New("acct", profile.NamespaceCommonCore)
	p.SetAttribute("current_mtx_platform", platform)
	p.Items["mtx-1"] = profile.NewItem("Currency:MtxCurrency", map[string]any{"platform": platform}, balance)
	return p
}

func TestPurchaseDailyOffer(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceAthena))
	p := newCoreProfile(1000, "PC")

	c := run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-daily-emote-floss"}`)

	if got := p.Items["mtx-1"].Quantity; got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}

	var sawDebit bool
	for _, record := range c.Log.Records() {
		if record.Type == change.TypeItemQuantityChanged && record.ItemID == "mtx-1" {
			sawDebit = true
		}
	}
	if !sawDebit {
		t.Fatalf("expected an itemQuantityChanged debit record, got %+v", c.Log.Records())
	}

	secondaries := c.Secondaries()
	if len(secondaries) != 1 || secondaries[0].Profile.ProfileID != profile.NamespaceAthena {
		t.Fatalf("expected one athena secondary, got %+v", secondaries)
	}
	if secondaries[0].Profile.FindByTemplateID("AthenaDance:eid_floss") == "" {
		t.Fatal("expected emote granted to athena")
	}
	if len(c.Notifications) != 1 || c.Notifications[0].Type != "CatalogPurchase" {
		t.Fatalf("expected a CatalogPurchase notification, got %+v", c.Notifications)
	}

	history := p.MtxPurchaseHistory()
	purchases := history["purchases"].([]any)
	if len(purchases) != 1 {
		t.Fatalf("expected one recorded purchase, got %d", len(purchases))
	}
}

func TestPurchaseSharedPlatformStack(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceAthena))
	p := profile.New("acct", profile.NamespaceCommonCore)
	p.SetAttribute("current_mtx_platform", "PC")
	p.Items["mtx-1"] = profile.NewItem("Currency:MtxCurrency", map[string]any{"platform": "shared"}, 1000)

	run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-daily-emote-floss"}`)
	if got := p.Items["mtx-1"].Quantity; got != 500 {
		t.Fatalf("expected shared stack debited to 500, got %d", got)
	}
}

func TestPurchaseAlreadyOwned(t *testing.T) {
	env, store := testEnv(t)
	athena := profile.New("acct", profile.NamespaceAthena)
	athena.Items["emote-1"] = profile.NewItem("AthenaDance:eid_floss", nil, 1)
	store.Seed(athena)
	p := newCoreProfile(1000, "PC")

	err := runErr(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-daily-emote-floss"}`)
	wantCode(t, err, apperrors.CodeAlreadyOwned)
	if got := p.Items["mtx-1"].Quantity; got != 1000 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestPurchaseBalanceMayGoNegative(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceAthena))
	p := newCoreProfile(100, "PC")

	run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-daily-emote-floss"}`)
	if got := p.Items["mtx-1"].Quantity; got != -400 {
		t.Fatalf("expected balance -400, got %d", got)
	}
}

func TestPurchaseUnknownOffer(t *testing.T) {
	env, _ := testEnv(t)
	p := newCoreProfile(1000, "PC")

	err := runErr(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/no-such-offer"}`)
	wantCode(t, err, apperrors.CodeOfferNotFound)
}

func TestPurchaseBattlePassUnlock(t *testing.T) {
	env, store := testEnv(t)
	athena := profile.New("acct", profile.NamespaceAthena)
	athena.SetAttribute("book_level", 1)
	store.Seed(athena)
	p := newCoreProfile(1000, "PC")

	c := run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-season8-battlepass"}`)

	if got := p.Items["mtx-1"].Quantity; got != 50 {
		t.Fatalf("expected balance 50 after 950 pass, got %d", got)
	}
	secondary := c.Secondaries()[0]
	if purchased, _ := secondary.Profile.Stats.Attributes["book_purchased"].(bool); !purchased {
		t.Fatal("expected book_purchased set on athena")
	}
	if secondary.Profile.FindByTemplateID("AthenaCharacter:cid_bp_s8_blackheart") == "" {
		t.Fatal("expected tier 1 paid reward granted")
	}
	if secondary.Profile.FindByTemplateID(battlePassGiftBox) == "" {
		t.Fatal("expected gift box carrying the loot list")
	}
}

func TestPurchaseBattlePassTwice(t *testing.T) {
	env, store := testEnv(t)
	athena := profile.New("acct", profile.NamespaceAthena)
	athena.SetAttribute("book_purchased", true)
	store.Seed(athena)
	p := newCoreProfile(2000, "PC")

	err := runErr(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-season8-battlepass"}`)
	wantCode(t, err, apperrors.CodeAlreadyPurchased)
}

func TestPurchaseBattlePassTierRange(t *testing.T) {
	env, store := testEnv(t)
	athena := profile.New("acct", profile.NamespaceAthena)
	athena.SetAttribute("book_purchased", true)
	athena.SetAttribute("book_level", 10)
	store.Seed(athena)
	p := newCoreProfile(1000, "PC")

	c := run(t, env, p, PurchaseCatalogEntry,
		`{"offerId":"v2:/br-season8-singletier","purchaseQuantity":3}`)

	secondary := c.Secondaries()[0]
	if got := secondary.Profile.IntAttribute("book_level"); got != 13 {
		t.Fatalf("expected book_level 13, got %d", got)
	}

	// Tiers 10, 11 and 12 only: the free loading screen at 10, the paid
	// backpack at 11 and the paid loading screen at 12.
	for _, templateID := range []string{
		"AthenaLoadingScreen:lsid_bp_s8_free_t010",
		"AthenaBackpack:bid_bp_s8_t011",
		"AthenaLoadingScreen:lsid_bp_s8_t012",
	} {
		if secondary.Profile.FindByTemplateID(templateID) == "" {
			t.Fatalf("expected %s granted", templateID)
		}
	}
	if secondary.Profile.FindByTemplateID("AthenaCharacter:cid_bp_s8_blackheart") != "" {
		t.Fatal("tier 1 reward must not be granted by a tier purchase")
	}

	// 3 tiers at 150 each, minus the 100 premium currency inside tier 10.
	if got := p.Items["mtx-1"].Quantity; got != 650 {
		t.Fatalf("expected balance 650, got %d", got)
	}
	if got := secondary.Profile.IntAttribute("season_match_boost"); got != 5 {
		t.Fatalf("expected xp boost token folded into season_match_boost, got %d", got)
	}
}

func TestPurchaseBattlePassTierRequiresPass(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceAthena))
	p := newCoreProfile(1000, "PC")

	err := runErr(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/br-season8-singletier"}`)
	wantCode(t, err, apperrors.CodeOperationForbidden)
}

func TestPurchaseEventOfferChecksBalance(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceCampaign)
	p.Items["gold-1"] = profile.NewItem("AccountResource:eventcurrency_scaling", nil, 1000)

	err := runErr(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/stw-event-jackolauncher"}`)
	wantCode(t, err, apperrors.CodeInsufficientCurrency)
	if got := p.Items["gold-1"].Quantity; got != 1000 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestPurchaseEventOffer(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceCampaign)
	p.Items["gold-1"] = profile.NewItem("AccountResource:eventcurrency_scaling", nil, 2500)

	run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/stw-event-jackolauncher"}`)

	if got := p.Items["gold-1"].Quantity; got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
	if p.FindByTemplateID("Schematic:sid_launcher_grenade_jack_sr_t04") == "" {
		t.Fatal("expected schematic granted")
	}
}

func TestPurchaseCardPackOpensImmediately(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceCampaign)
	p.Items["llama-1"] = profile.NewItem("AccountResource:currency_xrayllama", nil, 100)

	c := run(t, env, p, PurchaseCatalogEntry, `{"offerId":"v2:/cardpack-xray-standard"}`)

	if got := p.Items["llama-1"].Quantity; got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}
	if len(c.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(c.Notifications))
	}
	loot := c.Notifications[0].LootResult.Items
	if len(loot) != 10 {
		t.Fatalf("expected 10 drawn items, got %d", len(loot))
	}
	for _, item := range loot {
		if p.Item(item.ItemGuid) == nil {
			t.Fatalf("expected drawn item %s present in profile", item.ItemGuid)
		}
	}
}

func TestDrawWeightedCoversPool(t *testing.T) {
	env, _ := testEnv(t)
	pack, ok := env.Content.CardPack("CardPack:cardpack_bronze")
	if !ok {
		t.Fatal("bronze pack definition missing")
	}

	total := poolWeight(pack.Pool)
	if total != 100 {
		t.Fatalf("expected pool weight 100, got %d", total)
	}
	if got := drawWeighted(pack.Pool, 0); got.TemplateID != pack.Pool[0].TemplateID {
		t.Fatalf("expected roll 0 to hit the first entry, got %s", got.TemplateID)
	}
	if got := drawWeighted(pack.Pool, total-1); got.TemplateID != pack.Pool[len(pack.Pool)-1].TemplateID {
		t.Fatalf("expected max roll to hit the last entry, got %s", got.TemplateID)
	}
}
