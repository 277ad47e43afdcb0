// Package op implements the profile mutation handlers.
//
// Every operation follows the same contract: validate the request body
// before touching state, mutate the loaded profile document directly, and
// append one change record per mutation in production order. Handlers never
// bump revisions or persist; the engine does both after the handler returns.
package op

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/louisbranch/homebase/internal/content"
	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
	"github.com/louisbranch/homebase/internal/storage"
)

// Environment carries the collaborators shared by all handlers.
type Environment struct {
	Content *content.Store
	Store   storage.ProfileStore
	Clock   func() time.Time
	NewID   func() (string, error)
	Rand    *rand.Rand
}

// LootItem is one granted item inside a purchase notification.
type LootItem struct {
	ItemType    string `json:"itemType"`
	ItemGuid    string `json:"itemGuid"`
	ItemProfile string `json:"itemProfile"`
	Quantity    int    `json:"quantity"`
}

// LootResult groups the items granted by one purchase.
type LootResult struct {
	Items []LootItem `json:"items"`
}

// Notification is an out-of-band message attached to a response.
type Notification struct {
	Type       string      `json:"type"`
	Primary    bool        `json:"primary"`
	LootResult *LootResult `json:"lootResult,omitempty"`
}

// Secondary is a non-primary profile touched by the current operation.
type Secondary struct {
	Profile *profile.Profile
	Log     *change.Log
	BaseRvn int64
	Version storage.Version
}

// Context is the per-request state handed to a handler.
type Context struct {
	Env     *Environment
	Profile *profile.Profile
	Body    json.RawMessage

	// Log collects the primary profile's change records.
	Log *change.Log
	// Notifications collects response notifications.
	Notifications []Notification

	secondaries    map[string]*Secondary
	secondaryOrder []string
}

// Handler applies one operation against a loaded profile.
type Handler func(ctx context.Context, c *Context) error

// NewContext builds a handler context for a loaded primary profile.
func NewContext(env *Environment, primary *profile.Profile, body json.RawMessage) *Context {
	return &Context{
		Env:         env,
		Profile:     primary,
		Body:        body,
		Log:         &change.Log{},
		secondaries: make(map[string]*Secondary),
	}
}

// Decode unmarshals the request body into target, translating malformed
// payloads into the InvalidPayload condition.
func (c *Context) Decode(target any) error {
	if len(c.Body) == 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "request body is required")
	}
	if err := json.Unmarshal(c.Body, target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPayload, "malformed request body", err)
	}
	return nil
}

// Notify appends a response notification.
func (c *Context) Notify(notification Notification) {
	c.Notifications = append(c.Notifications, notification)
}

// Secondary loads (and caches) another profile of the same account so a
// handler can fold cross-profile mutations into its response. When the
// primary profile is requested the call is an error; handlers mutate the
// primary through c.Profile and c.Log.
func (c *Context) Secondary(ctx context.Context, profileID string) (*Secondary, error) {
	if profileID == c.Profile.ProfileID {
		return nil, apperrors.New(apperrors.CodeUnknown, "secondary lookup for primary profile")
	}
	if cached, ok := c.secondaries[profileID]; ok {
		return cached, nil
	}
	doc, version, err := c.Env.Store.GetProfile(ctx, c.Profile.AccountID, profileID)
	if err != nil {
		return nil, err
	}
	secondary := &Secondary{
		Profile: doc,
		Log:     &change.Log{},
		BaseRvn: doc.Rvn,
		Version: version,
	}
	c.secondaries[profileID] = secondary
	c.secondaryOrder = append(c.secondaryOrder, profileID)
	return secondary, nil
}

// target resolves a profile id to the primary or a secondary, loading the
// secondary on first touch.
func (c *Context) target(ctx context.Context, profileID string) (*profile.Profile, *change.Log, error) {
	if profileID == c.Profile.ProfileID {
		return c.Profile, c.Log, nil
	}
	secondary, err := c.Secondary(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}
	return secondary.Profile, secondary.Log, nil
}

// Secondaries returns the touched secondary profiles in first-touch order.
func (c *Context) Secondaries() []*Secondary {
	out := make([]*Secondary, 0, len(c.secondaryOrder))
	for _, profileID := range c.secondaryOrder {
		out = append(out, c.secondaries[profileID])
	}
	return out
}

// Registry returns the operation table keyed by lower-cased operation name.
// Unknown operations are intentionally absent: the engine treats them as
// valid no-ops, not errors.
func Registry() map[string]Handler {
	return map[string]Handler{
		"queryprofile":                   QueryProfile,
		"setitemfavoritestatus":          SetItemFavoriteStatus,
		"setitemfavoritestatusbatch":     SetItemFavoriteStatusBatch,
		"markitemseen":                   MarkItemSeen,
		"setitemarchivedstatusbatch":     SetItemArchivedStatusBatch,
		"equipbattleroyalecustomization": EquipBattleRoyaleCustomization,
		"setcosmeticlockerslot":          SetCosmeticLockerSlot,
		"clientquestlogin":               ClientQuestLogin,
		"fortrerolldailyquest":           FortRerollDailyQuest,
		"updatequestclientobjectives":    UpdateQuestClientObjectives,
		"claimquestreward":               ClaimQuestReward,
		"claimloginreward":               ClaimLoginReward,
		"purchasecatalogentry":           PurchaseCatalogEntry,
		"refundmtxpurchase":              RefundMtxPurchase,
		"upgradeitem":                    UpgradeItem,
		"upgradeitemrarity":              UpgradeItemRarity,
		"craftworlditem":                 CraftWorldItem,
		"destroyworlditems":              DestroyWorldItems,
	}
}

// QueryProfile is a read-only heartbeat; the reconciler decides whether the
// client needs a full snapshot.
func QueryProfile(ctx context.Context, c *Context) error {
	return nil
}

// grantItem adds an item to a profile and records the change. Stackable
// categories (currency, resources, ammo, tokens) fold into an existing stack
// of the same template; everything else becomes a new item.
func grantItem(p *profile.Profile, log *change.Log, newID func() (string, error), templateID string, quantity int, attributes map[string]any) (string, error) {
	if stackable(profile.CategoryOf(templateID)) {
		if existingID := p.FindByTemplateID(templateID); existingID != "" {
			item := p.Items[existingID]
			item.Quantity += quantity
			log.Append(change.ItemQuantityChanged(existingID, item.Quantity))
			return existingID, nil
		}
	}

	itemID, err := newID()
	if err != nil {
		return "", err
	}
	if attributes == nil {
		attributes = defaultAttributes(profile.CategoryOf(templateID))
	}
	item := profile.NewItem(templateID, attributes, quantity)
	p.Items[itemID] = item
	log.Append(change.ItemAdded(itemID, item))
	return itemID, nil
}

func stackable(category profile.Category) bool {
	switch category {
	case profile.CategoryCurrencyMtx,
		profile.CategoryCurrency,
		profile.CategoryAccountResource,
		profile.CategoryAmmo,
		profile.CategoryToken:
		return true
	default:
		return false
	}
}

// defaultAttributes seeds the attribute shape expected for a category.
func defaultAttributes(category profile.Category) map[string]any {
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
		return map[string]any{
			"max_level_bonus": 0,
			"level":           1,
			"item_seen":       false,
			"xp":              0,
			"variants":        []any{},
			"favorite":        false,
		}
	case profile.CategoryWeapon, profile.CategoryTrap:
		return map[string]any{
			"level":      1,
			"durability": 100,
			"item_seen":  false,
			"favorite":   false,
		}
	case profile.CategoryHero, profile.CategoryWorker, profile.CategorySchematic:
		return map[string]any{
			"level":           1,
			"max_level_bonus": 0,
			"item_seen":       false,
			"favorite":        false,
		}
	default:
		return map[string]any{
			"item_seen": false,
		}
	}
}
