package op

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/homebase/internal/content"
	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// defaultMtxPlatform is assumed when the account never recorded one.
const defaultMtxPlatform = "EpicPC"

// battlePassGiftBox wraps battle-pass cosmetic grants in the response.
const battlePassGiftBox = "GiftBox:gb_battlepass"

type purchaseBody struct {
	OfferID            string `json:"offerId"`
	PurchaseQuantity   int    `json:"purchaseQuantity"`
	Currency           string `json:"currency"`
	CurrencySubType    string `json:"currencySubType"`
	ExpectedTotalPrice int    `json:"expectedTotalPrice"`
	GameContext        string `json:"gameContext"`
}

// PurchaseCatalogEntry buys a storefront offer. The storefront decides the
// purchase flow: premium-currency cosmetics, battle-pass offers, event-store
// purchases paid in game items, and card packs that open on purchase.
func PurchaseCatalogEntry(ctx context.Context, c *Context) error {
	var body purchaseBody
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.OfferID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "offerId is required")
	}
	if body.PurchaseQuantity == 0 {
		body.PurchaseQuantity = 1
	}
	if body.PurchaseQuantity < 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "purchaseQuantity must be positive")
	}

	offer, ok := c.Env.Content.FindOffer(body.OfferID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeOfferNotFound,
			fmt.Sprintf("offer %s not found", body.OfferID),
			map[string]string{"offerId": body.OfferID})
	}

	switch {
	case strings.HasPrefix(offer.Storefront, "BRSeason"):
		return c.purchaseBattlePassOffer(ctx, offer, body)
	case strings.HasPrefix(offer.Storefront, "cardpack"):
		return c.purchaseCardPackOffer(ctx, offer, body)
	case strings.HasPrefix(offer.Storefront, "BR"):
		return c.purchaseMtxOffer(ctx, offer, body)
	default:
		return c.purchaseGameItemOffer(ctx, offer, body)
	}
}

// purchaseMtxOffer handles direct cosmetic purchases paid in premium
// currency. Cosmetics are unique, so owning any granted template rejects the
// purchase up front. The debit is not balance-checked; a stack may go
// negative, matching long-standing storefront behavior.
func (c *Context) purchaseMtxOffer(ctx context.Context, offer content.Offer, body purchaseBody) error {
	price, ok := mtxPrice(offer)
	if !ok {
		return apperrors.New(apperrors.CodeOperationForbidden,
			fmt.Sprintf("offer %s has no premium currency price", offer.OfferID))
	}
	total := price.FinalPrice * body.PurchaseQuantity

	athena, _, err := c.target(ctx, profile.NamespaceAthena)
	if err != nil {
		return err
	}
	for _, grant := range offer.ItemGrants {
		if stackable(profile.CategoryOf(grant.TemplateID)) {
			continue
		}
		if athena.FindByTemplateID(grant.TemplateID) != "" {
			return apperrors.WithMetadata(apperrors.CodeAlreadyOwned,
				fmt.Sprintf("item %s already owned", grant.TemplateID),
				map[string]string{"templateId": grant.TemplateID})
		}
	}

	core, coreLog, err := c.target(ctx, profile.NamespaceCommonCore)
	if err != nil {
		return err
	}
	if err := adjustMtx(core, coreLog, -total); err != nil {
		return err
	}

	var loot []LootItem
	for _, grant := range offer.ItemGrants {
		targetID := profile.NamespaceAthena
		if !cosmeticCategory(profile.CategoryOf(grant.TemplateID)) {
			targetID = profile.NamespaceCommonCore
		}
		target, log, err := c.target(ctx, targetID)
		if err != nil {
			return err
		}
		itemID, err := grantItem(target, log, c.Env.NewID, grant.TemplateID, grant.Quantity*body.PurchaseQuantity, nil)
		if err != nil {
			return err
		}
		loot = append(loot, LootItem{
			ItemType:    grant.TemplateID,
			ItemGuid:    itemID,
			ItemProfile: targetID,
			Quantity:    grant.Quantity * body.PurchaseQuantity,
		})
	}

	if err := c.recordMtxPurchase(core, coreLog, offer.OfferID, total, body.GameContext, loot); err != nil {
		return err
	}
	c.Notify(Notification{Type: "CatalogPurchase", Primary: true, LootResult: &LootResult{Items: loot}})
	return nil
}

// purchaseBattlePassOffer handles the three season offers: the pass, the
// bundle (pass plus 25 tiers) and individual tier purchases.
func (c *Context) purchaseBattlePassOffer(ctx context.Context, offer content.Offer, body purchaseBody) error {
	season, err := strconv.Atoi(strings.TrimPrefix(offer.Storefront, "BRSeason"))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeOfferNotFound,
			fmt.Sprintf("storefront %s has no season", offer.Storefront), err)
	}
	pass, ok := c.Env.Content.BattlePass(season)
	if !ok {
		return apperrors.New(apperrors.CodeOfferNotFound,
			fmt.Sprintf("no battle pass for season %d", season))
	}
	price, ok := mtxPrice(offer)
	if !ok {
		return apperrors.New(apperrors.CodeOperationForbidden,
			fmt.Sprintf("offer %s has no premium currency price", offer.OfferID))
	}

	athena, athenaLog, err := c.target(ctx, profile.NamespaceAthena)
	if err != nil {
		return err
	}
	core, coreLog, err := c.target(ctx, profile.NamespaceCommonCore)
	if err != nil {
		return err
	}

	switch offer.OfferID {
	case pass.PassOfferID, pass.BundleOfferID:
		if bookPurchased(athena) {
			return apperrors.New(apperrors.CodeAlreadyPurchased, "battle pass already purchased")
		}
		if err := adjustMtx(core, coreLog, -price.FinalPrice); err != nil {
			return err
		}

		startLevel := max(athena.IntAttribute("book_level"), 1)
		newLevel := startLevel
		if offer.OfferID == pass.BundleOfferID {
			newLevel = min(startLevel+25, pass.TierCount)
		}

		athena.SetAttribute("book_purchased", true)
		athenaLog.Append(change.StatModified("book_purchased", true))
		if newLevel != startLevel {
			athena.SetAttribute("book_level", newLevel)
			athenaLog.Append(change.StatModified("book_level", newLevel))
		}

		// Both tracks for every tier reached, including bundle-skipped ones.
		var loot []LootItem
		for tier := 1; tier <= newLevel && tier <= len(pass.Tiers); tier++ {
			rung := pass.Tiers[tier-1]
			grants := append(append([]content.ItemGrant{}, rung.Free...), rung.Paid...)
			items, err := c.grantBattlePassRewards(ctx, athena, athenaLog, core, coreLog, grants)
			if err != nil {
				return err
			}
			loot = append(loot, items...)
		}
		c.attachGiftBox(athena, athenaLog, loot)
		if err := c.recordMtxPurchase(core, coreLog, offer.OfferID, price.FinalPrice, body.GameContext, loot); err != nil {
			return err
		}
		c.Notify(Notification{Type: "CatalogPurchase", Primary: true, LootResult: &LootResult{Items: loot}})
		return nil

	case pass.TierOfferID:
		if !bookPurchased(athena) {
			return apperrors.New(apperrors.CodeOperationForbidden, "battle pass required to buy tiers")
		}
		startLevel := max(athena.IntAttribute("book_level"), 1)
		newLevel := min(startLevel+body.PurchaseQuantity, pass.TierCount)
		granted := newLevel - startLevel
		if granted <= 0 {
			return apperrors.New(apperrors.CodeOperationForbidden, "battle pass already at max tier")
		}
		if err := adjustMtx(core, coreLog, -price.FinalPrice*granted); err != nil {
			return err
		}

		var loot []LootItem
		for tier := startLevel; tier < newLevel && tier <= len(pass.Tiers); tier++ {
			rung := pass.Tiers[tier-1]
			grants := append(append([]content.ItemGrant{}, rung.Free...), rung.Paid...)
			items, err := c.grantBattlePassRewards(ctx, athena, athenaLog, core, coreLog, grants)
			if err != nil {
				return err
			}
			loot = append(loot, items...)
		}

		athena.SetAttribute("book_level", newLevel)
		athenaLog.Append(change.StatModified("book_level", newLevel))
		c.attachGiftBox(athena, athenaLog, loot)
		if err := c.recordMtxPurchase(core, coreLog, offer.OfferID, price.FinalPrice*granted, body.GameContext, loot); err != nil {
			return err
		}
		c.Notify(Notification{Type: "CatalogPurchase", Primary: true, LootResult: &LootResult{Items: loot}})
		return nil

	default:
		return apperrors.New(apperrors.CodeOfferNotFound,
			fmt.Sprintf("offer %s is not part of season %d", offer.OfferID, season))
	}
}

// grantBattlePassRewards routes one tier's grants. XP boost tokens become
// stat counters, premium currency refills the account's stack, everything
// else lands in the season profile as items.
func (c *Context) grantBattlePassRewards(ctx context.Context, athena *profile.Profile, athenaLog *change.Log, core *profile.Profile, coreLog *change.Log, grants []content.ItemGrant) ([]LootItem, error) {
	var loot []LootItem
	for _, grant := range grants {
		switch {
		case grant.TemplateID == "Token:athenaseasonxpboost":
			boost := athena.IntAttribute("season_match_boost") + grant.Quantity
			athena.SetAttribute("season_match_boost", boost)
			athenaLog.Append(change.StatModified("season_match_boost", boost))
		case grant.TemplateID == "Token:athenaseasonfriendxpboost":
			boost := athena.IntAttribute("season_friend_match_boost") + grant.Quantity
			athena.SetAttribute("season_friend_match_boost", boost)
			athenaLog.Append(change.StatModified("season_friend_match_boost", boost))
		case profile.CategoryOf(grant.TemplateID) == profile.CategoryCurrencyMtx:
			if err := adjustMtx(core, coreLog, grant.Quantity); err != nil {
				return nil, err
			}
			loot = append(loot, LootItem{
				ItemType:    grant.TemplateID,
				ItemProfile: profile.NamespaceCommonCore,
				Quantity:    grant.Quantity,
			})
		default:
			itemID, err := grantItem(athena, athenaLog, c.Env.NewID, grant.TemplateID, grant.Quantity, nil)
			if err != nil {
				return nil, err
			}
			loot = append(loot, LootItem{
				ItemType:    grant.TemplateID,
				ItemGuid:    itemID,
				ItemProfile: profile.NamespaceAthena,
				Quantity:    grant.Quantity,
			})
		}
	}
	return loot, nil
}

// attachGiftBox adds a gift box item carrying the loot list so returning
// clients see what the purchase paid out.
func (c *Context) attachGiftBox(athena *profile.Profile, log *change.Log, loot []LootItem) {
	if len(loot) == 0 {
		return
	}
	lootList := make([]any, 0, len(loot))
	for _, item := range loot {
		lootList = append(lootList, map[string]any{
			"itemType":    item.ItemType,
			"itemGuid":    item.ItemGuid,
			"itemProfile": item.ItemProfile,
			"quantity":    item.Quantity,
		})
	}
	itemID, err := c.Env.NewID()
	if err != nil {
		return
	}
	item := profile.NewItem(battlePassGiftBox, map[string]any{
		"max_level_bonus": 0,
		"level":           1,
		"item_seen":       false,
		"lootList":        lootList,
	}, 1)
	athena.Items[itemID] = item
	log.Append(change.ItemAdded(itemID, item))
}

// purchaseGameItemOffer handles event-store purchases paid with in-game
// resources. The spend is balance-checked before any stack is touched, so a
// short balance mutates nothing.
func (c *Context) purchaseGameItemOffer(ctx context.Context, offer content.Offer, body purchaseBody) error {
	price, ok := gameItemPrice(offer)
	if !ok {
		return apperrors.New(apperrors.CodeOperationForbidden,
			fmt.Sprintf("offer %s has no game item price", offer.OfferID))
	}
	total := price.FinalPrice * body.PurchaseQuantity

	if err := spendResource(c.Profile, c.Log, price.CurrencySubType, total); err != nil {
		return err
	}

	var loot []LootItem
	for _, grant := range offer.ItemGrants {
		itemID, err := grantItem(c.Profile, c.Log, c.Env.NewID, grant.TemplateID, grant.Quantity*body.PurchaseQuantity, nil)
		if err != nil {
			return err
		}
		loot = append(loot, LootItem{
			ItemType:    grant.TemplateID,
			ItemGuid:    itemID,
			ItemProfile: c.Profile.ProfileID,
			Quantity:    grant.Quantity * body.PurchaseQuantity,
		})
	}
	c.Notify(Notification{Type: "CatalogPurchase", Primary: true, LootResult: &LootResult{Items: loot}})
	return nil
}

// purchaseCardPackOffer buys card packs and opens them immediately: each
// pack rolls its weighted pool, with a small chance of upgrading one draw
// into a choice pack the player resolves later.
func (c *Context) purchaseCardPackOffer(ctx context.Context, offer content.Offer, body purchaseBody) error {
	price, ok := gameItemPrice(offer)
	if !ok {
		return apperrors.New(apperrors.CodeOperationForbidden,
			fmt.Sprintf("offer %s has no game item price", offer.OfferID))
	}
	total := price.FinalPrice * body.PurchaseQuantity

	if err := spendResource(c.Profile, c.Log, price.CurrencySubType, total); err != nil {
		return err
	}

	var loot []LootItem
	for _, grant := range offer.ItemGrants {
		pack, ok := c.Env.Content.CardPack(grant.TemplateID)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("no card pack definition for %s", grant.TemplateID),
				map[string]string{"templateId": grant.TemplateID})
		}
		packs := grant.Quantity * body.PurchaseQuantity
		for i := 0; i < packs; i++ {
			items, err := c.openCardPack(pack)
			if err != nil {
				return err
			}
			loot = append(loot, items...)
		}
	}
	c.Notify(Notification{Type: "CatalogPurchase", Primary: true, LootResult: &LootResult{Items: loot}})
	return nil
}

// openCardPack rolls one pack's draws against the primary profile.
func (c *Context) openCardPack(pack content.CardPack) ([]LootItem, error) {
	var loot []LootItem
	for draw := 0; draw < pack.DrawCount; draw++ {
		if pack.ChoicePack != "" && c.Env.Rand.IntN(10) == 0 {
			item, err := c.grantChoicePack(pack)
			if err != nil {
				return nil, err
			}
			loot = append(loot, item)
			continue
		}
		picked := drawWeighted(pack.Pool, c.Env.Rand.IntN(poolWeight(pack.Pool)))
		itemID, err := grantItem(c.Profile, c.Log, c.Env.NewID, picked.TemplateID, picked.Quantity, nil)
		if err != nil {
			return nil, err
		}
		loot = append(loot, LootItem{
			ItemType:    picked.TemplateID,
			ItemGuid:    itemID,
			ItemProfile: c.Profile.ProfileID,
			Quantity:    picked.Quantity,
		})
	}
	return loot, nil
}

// grantChoicePack adds an unopened choice pack holding two distinct options
// drawn from the source pool.
func (c *Context) grantChoicePack(pack content.CardPack) (LootItem, error) {
	first := drawWeighted(pack.Pool, c.Env.Rand.IntN(poolWeight(pack.Pool)))
	second := first
	for attempt := 0; attempt < 10 && second.TemplateID == first.TemplateID; attempt++ {
		second = drawWeighted(pack.Pool, c.Env.Rand.IntN(poolWeight(pack.Pool)))
	}
	itemID, err := grantItem(c.Profile, c.Log, c.Env.NewID, pack.ChoicePack, 1, map[string]any{
		"level":       1,
		"pack_source": "Store",
		"options":     []any{first.TemplateID, second.TemplateID},
	})
	if err != nil {
		return LootItem{}, err
	}
	return LootItem{
		ItemType:    pack.ChoicePack,
		ItemGuid:    itemID,
		ItemProfile: c.Profile.ProfileID,
		Quantity:    1,
	}, nil
}

func poolWeight(pool []content.WeightedGrant) int {
	total := 0
	for _, candidate := range pool {
		total += candidate.Weight
	}
	return total
}

// drawWeighted maps a roll in [0, poolWeight) to a pool entry by cumulative
// weight.
func drawWeighted(pool []content.WeightedGrant, roll int) content.WeightedGrant {
	for _, candidate := range pool {
		if roll < candidate.Weight {
			return candidate
		}
		roll -= candidate.Weight
	}
	return pool[len(pool)-1]
}

// recordMtxPurchase appends a refund-eligible entry to the account's
// purchase ledger.
func (c *Context) recordMtxPurchase(core *profile.Profile, log *change.Log, offerID string, totalPaid int, gameContext string, loot []LootItem) error {
	purchaseID, err := c.Env.NewID()
	if err != nil {
		return err
	}
	lootResult := make([]any, 0, len(loot))
	for _, item := range loot {
		lootResult = append(lootResult, map[string]any{
			"itemType":    item.ItemType,
			"itemGuid":    item.ItemGuid,
			"itemProfile": item.ItemProfile,
			"quantity":    item.Quantity,
		})
	}

	history := core.MtxPurchaseHistory()
	purchases, _ := history["purchases"].([]any)
	purchases = append(purchases, map[string]any{
		"purchaseId":   purchaseID,
		"offerId":      offerID,
		"purchaseDate": c.Env.Clock().UTC().Format(time.RFC3339),
		"refundDate":   "",
		"totalMtxPaid": totalPaid,
		"lootResult":   lootResult,
		"gameContext":  gameContext,
		"metadata":     map[string]any{},
	})
	history["purchases"] = purchases
	log.Append(change.StatModified("mtx_purchase_history", history))
	return nil
}

// mtxPrice finds the premium-currency price of an offer.
func mtxPrice(offer content.Offer) (content.Price, bool) {
	for _, price := range offer.Prices {
		if price.CurrencyType == "MtxCurrency" {
			return price, true
		}
	}
	return content.Price{}, false
}

// gameItemPrice finds the in-game-resource price of an offer.
func gameItemPrice(offer content.Offer) (content.Price, bool) {
	for _, price := range offer.Prices {
		if price.CurrencyType == "GameItem" && price.CurrencySubType != "" {
			return price, true
		}
	}
	return content.Price{}, false
}

// adjustMtx applies a signed delta to the first premium-currency stack
// matching the account's platform. Debits are not balance-checked.
func adjustMtx(core *profile.Profile, log *change.Log, delta int) error {
	platform := mtxPlatform(core)
	for _, itemID := range core.SortedItemIDs() {
		item := core.Items[itemID]
		if item.Category() != profile.CategoryCurrencyMtx {
			continue
		}
		stackPlatform := item.StringAttr("platform")
		if stackPlatform != platform && stackPlatform != "shared" {
			continue
		}
		item.Quantity += delta
		log.Append(change.ItemQuantityChanged(itemID, item.Quantity))
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInsufficientCurrency,
		"no premium currency stack for platform",
		map[string]string{"platform": platform})
}

func mtxPlatform(core *profile.Profile) string {
	if value, ok := core.Attribute("current_mtx_platform"); ok {
		if platform, ok := value.(string); ok && platform != "" {
			return platform
		}
	}
	return defaultMtxPlatform
}

func bookPurchased(athena *profile.Profile) bool {
	value, _ := athena.Attribute("book_purchased")
	purchased, _ := value.(bool)
	return purchased
}

// spendResource deducts amount of a resource template across the profile's
// stacks. The balance is verified before any stack changes, and consumed
// stacks are removed rather than left at zero.
func spendResource(p *profile.Profile, log *change.Log, templateID string, amount int) error {
	available := 0
	for _, itemID := range p.SortedItemIDs() {
		item := p.Items[itemID]
		if item.TemplateID == templateID {
			available += item.Quantity
		}
	}
	if available < amount {
		return apperrors.WithMetadata(apperrors.CodeInsufficientCurrency,
			fmt.Sprintf("need %d of %s, have %d", amount, templateID, available),
			map[string]string{"templateId": templateID})
	}

	remaining := amount
	for _, itemID := range p.SortedItemIDs() {
		if remaining == 0 {
			break
		}
		item := p.Items[itemID]
		if item.TemplateID != templateID {
			continue
		}
		if item.Quantity > remaining {
			item.Quantity -= remaining
			log.Append(change.ItemQuantityChanged(itemID, item.Quantity))
			remaining = 0
			break
		}
		remaining -= item.Quantity
		delete(p.Items, itemID)
		log.Append(change.ItemRemoved(itemID))
	}
	return nil
}

// cosmeticCategory reports whether a category lives in the season profile.
func cosmeticCategory(category profile.Category) bool {
	switch category {
	case profile.CategoryCharacter,
		profile.CategoryBackpack,
		profile.CategoryPickaxe,
		profile.CategoryGlider,
		profile.CategorySkyDiveContrail,
		profile.CategoryMusicPack,
		profile.CategoryLoadingScreen,
		profile.CategoryDance,
		profile.CategoryItemWrap:
		return true
	default:
		return false
	}
}
