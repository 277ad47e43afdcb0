package profile

import (
	"encoding/json"
	"sort"
	"time"
)

// Known profile namespaces. Each namespace has disjoint item semantics but
// shares the mutation mechanics.
const (
	// NamespaceCommonCore holds account-wide currency and purchase history.
	NamespaceCommonCore = "common_core"
	// NamespaceAthena holds Battle Royale cosmetics, quests and loadouts.
	NamespaceAthena = "athena"
	// NamespaceCampaign holds the save-the-world campaign state.
	NamespaceCampaign = "campaign"
	// NamespaceOutpost is the stash/theater inventory.
	NamespaceOutpost = "outpost0"
	// NamespaceCollectionBookPeople is the people collection book.
	NamespaceCollectionBookPeople = "collection_book_people0"
	// NamespaceCollectionBookSchematics is the schematics collection book.
	NamespaceCollectionBookSchematics = "collection_book_schematics0"
)

// Stats holds the free-form named stats of a profile. Handlers assume
// specific shapes per stat and tolerate absence via the lazy accessors on
// Profile.
type Stats struct {
	Attributes map[string]any `json:"attributes"`
}

// Profile is the persisted player document for one gameplay namespace.
type Profile struct {
	AccountID       string
	ProfileID       string
	Rvn             int64
	CommandRevision int64
	Updated         time.Time
	Items           map[string]*Item
	Stats           Stats
}

// New creates an empty profile document for the given namespace.
func New(accountID, profileID string) *Profile {
	return &Profile{
		AccountID: accountID,
		ProfileID: profileID,
		Items:     make(map[string]*Item),
		Stats:     Stats{Attributes: make(map[string]any)},
	}
}

// BumpRevision advances both revision counters together and refreshes the
// advisory update timestamp. It must be called exactly once per request that
// applied at least one mutation.
func (p *Profile) BumpRevision(now time.Time) {
	p.Rvn++
	p.CommandRevision++
	p.Updated = now.UTC()
}

// Item returns the item with the given id, or nil when absent.
func (p *Profile) Item(itemID string) *Item {
	return p.Items[itemID]
}

// SortedItemIDs returns all item ids in lexical order. Map iteration order is
// not stable; handlers that need "first match wins" semantics iterate in this
// order so responses are deterministic.
func (p *Profile) SortedItemIDs() []string {
	ids := make([]string, 0, len(p.Items))
	for itemID := range p.Items {
		ids = append(ids, itemID)
	}
	sort.Strings(ids)
	return ids
}

// ItemsByCategory returns ids of items in the category, in lexical order.
func (p *Profile) ItemsByCategory(category Category) []string {
	var ids []string
	for _, itemID := range p.SortedItemIDs() {
		if p.Items[itemID].Category() == category {
			ids = append(ids, itemID)
		}
	}
	return ids
}

// FindByTemplateID returns the id of the first item with the given template
// id in lexical order, or "" when none exists.
func (p *Profile) FindByTemplateID(templateID string) string {
	for _, itemID := range p.SortedItemIDs() {
		if p.Items[itemID].TemplateID == templateID {
			return itemID
		}
	}
	return ""
}

// Attribute returns a stat attribute value.
func (p *Profile) Attribute(name string) (any, bool) {
	v, ok := p.Stats.Attributes[name]
	return v, ok
}

// SetAttribute writes a stat attribute value.
func (p *Profile) SetAttribute(name string, value any) {
	if p.Stats.Attributes == nil {
		p.Stats.Attributes = make(map[string]any)
	}
	p.Stats.Attributes[name] = value
}

// IntAttribute returns a numeric stat attribute as an int, or 0 when absent.
func (p *Profile) IntAttribute(name string) int {
	switch v := p.Stats.Attributes[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// mapAttribute returns the named stat as a live map, seeding the provided
// default shape the first time any handler touches it.
func (p *Profile) mapAttribute(name string, seed func() map[string]any) map[string]any {
	if p.Stats.Attributes == nil {
		p.Stats.Attributes = make(map[string]any)
	}
	if existing, ok := p.Stats.Attributes[name].(map[string]any); ok {
		return existing
	}
	value := seed()
	p.Stats.Attributes[name] = value
	return value
}

// arrayAttribute returns the named stat as a live array of the given size,
// seeding or resizing as needed. The returned slice is the stored value.
func (p *Profile) arrayAttribute(name string, size int, fill any) []any {
	if p.Stats.Attributes == nil {
		p.Stats.Attributes = make(map[string]any)
	}
	existing, ok := p.Stats.Attributes[name].([]any)
	if !ok || len(existing) != size {
		value := make([]any, size)
		for i := range value {
			if i < len(existing) {
				value[i] = existing[i]
				continue
			}
			value[i] = fill
		}
		p.Stats.Attributes[name] = value
		return value
	}
	return existing
}

// QuestManager returns the quest_manager stat, lazily initialized.
// dailyLoginInterval tracks the last daily-quest grant; dailyQuestRerolls is
// the reroll credit balance.
func (p *Profile) QuestManager() map[string]any {
	return p.mapAttribute("quest_manager", func() map[string]any {
		return map[string]any{
			"dailyLoginInterval": time.Time{}.Format(time.RFC3339),
			"dailyQuestRerolls":  1,
		}
	})
}

// LoadoutPresets returns the loadout_presets stat, lazily initialized.
func (p *Profile) LoadoutPresets() map[string]any {
	return p.mapAttribute("loadout_presets", func() map[string]any {
		return make(map[string]any)
	})
}

// DailyRewards returns the daily_rewards stat, lazily initialized.
func (p *Profile) DailyRewards() map[string]any {
	return p.mapAttribute("daily_rewards", func() map[string]any {
		return map[string]any{
			"nextDefaultReward":   0,
			"totalDaysLoggedIn":   0,
			"lastClaimDate":       time.Time{}.Format(time.RFC3339),
			"additionalSchedules": map[string]any{},
		}
	})
}

// MtxPurchaseHistory returns the mtx_purchase_history stat, lazily
// initialized. Purchases are recorded here so refunds can reverse them.
func (p *Profile) MtxPurchaseHistory() map[string]any {
	return p.mapAttribute("mtx_purchase_history", func() map[string]any {
		return map[string]any{
			"refundsUsed":   0,
			"refundCredits": 3,
			"purchases":     []any{},
		}
	})
}

// FavoriteDances returns the favorite_dance stat as a six-slot array.
func (p *Profile) FavoriteDances() []any {
	return p.arrayAttribute("favorite_dance", DanceSlots, "")
}

// FavoriteItemWraps returns the favorite_itemwraps stat as a seven-slot array.
func (p *Profile) FavoriteItemWraps() []any {
	return p.arrayAttribute("favorite_itemwraps", ItemWrapSlots, "")
}

type profileJSON struct {
	AccountID       string           `json:"accountId"`
	ProfileID       string           `json:"profileId"`
	Rvn             int64            `json:"rvn"`
	CommandRevision int64            `json:"commandRevision"`
	Updated         time.Time        `json:"updated"`
	Items           map[string]*Item `json:"items"`
	Stats           Stats            `json:"stats"`
	Version         string           `json:"version"`
}

// documentVersion tags serialized profiles; advisory only.
const documentVersion = "homebase_profile_v2"

// MarshalJSON encodes the profile in the protocol document shape.
func (p *Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{
		AccountID:       p.AccountID,
		ProfileID:       p.ProfileID,
		Rvn:             p.Rvn,
		CommandRevision: p.CommandRevision,
		Updated:         p.Updated.UTC(),
		Items:           p.Items,
		Stats:           p.Stats,
		Version:         documentVersion,
	})
}

// UnmarshalJSON decodes a profile document.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.AccountID = raw.AccountID
	p.ProfileID = raw.ProfileID
	p.Rvn = raw.Rvn
	p.CommandRevision = raw.CommandRevision
	p.Updated = raw.Updated
	p.Items = raw.Items
	if p.Items == nil {
		p.Items = make(map[string]*Item)
	}
	p.Stats = raw.Stats
	if p.Stats.Attributes == nil {
		p.Stats.Attributes = make(map[string]any)
	}
	return nil
}

// Clone returns a deep copy of the profile document.
func (p *Profile) Clone() *Profile {
	items := make(map[string]*Item, len(p.Items))
	for itemID, item := range p.Items {
		items[itemID] = item.Clone()
	}
	attrs := make(map[string]any, len(p.Stats.Attributes))
	for name, value := range p.Stats.Attributes {
		attrs[name] = CloneValue(value)
	}
	return &Profile{
		AccountID:       p.AccountID,
		ProfileID:       p.ProfileID,
		Rvn:             p.Rvn,
		CommandRevision: p.CommandRevision,
		Updated:         p.Updated,
		Items:           items,
		Stats:           Stats{Attributes: attrs},
	}
}
