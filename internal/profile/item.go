package profile

import (
	"encoding/json"
	"strings"
)

// Category classifies an item by its template id prefix.
//
// The category is resolved once when the item enters the profile; the
// original prefix-matching rules are preserved as the resolution algorithm.
type Category int

const (
	// CategoryOther covers template ids with no recognized prefix.
	CategoryOther Category = iota
	// CategoryCurrencyMtx is premium currency ("Currency:Mtx...").
	CategoryCurrencyMtx
	// CategoryCurrency is any other currency item.
	CategoryCurrency
	// CategoryQuest is a quest item carrying completion counters.
	CategoryQuest
	// CategoryWeapon is a world weapon.
	CategoryWeapon
	// CategoryTrap is a world trap.
	CategoryTrap
	// CategoryAmmo is ammunition.
	CategoryAmmo
	// CategoryWorker is a survivor/worker.
	CategoryWorker
	// CategoryHero is a campaign hero.
	CategoryHero
	// CategorySchematic is a crafting schematic.
	CategorySchematic
	// CategoryCardPack is an unopened loot pack.
	CategoryCardPack
	// CategoryToken is a token item (boosts, founder grants).
	CategoryToken
	// CategoryAccountResource is a spendable account resource.
	CategoryAccountResource
	// CategoryBannerIcon is a banner icon unlock.
	CategoryBannerIcon
	// CategoryBannerColor is a banner color unlock.
	CategoryBannerColor
	// CategoryCharacter is a Battle Royale outfit.
	CategoryCharacter
	// CategoryBackpack is a Battle Royale back bling.
	CategoryBackpack
	// CategoryPickaxe is a Battle Royale harvesting tool.
	CategoryPickaxe
	// CategoryGlider is a Battle Royale glider.
	CategoryGlider
	// CategorySkyDiveContrail is a skydiving contrail.
	CategorySkyDiveContrail
	// CategoryMusicPack is a lobby music pack.
	CategoryMusicPack
	// CategoryLoadingScreen is a loading screen.
	CategoryLoadingScreen
	// CategoryDance is an emote.
	CategoryDance
	// CategoryItemWrap is a weapon/vehicle wrap.
	CategoryItemWrap
	// CategoryCosmeticLocker is a locker preset item.
	CategoryCosmeticLocker
	// CategoryGiftBox is a synthesized gift box carrying a loot list.
	CategoryGiftBox
)

// categoryPrefixes maps template id prefixes to categories. Order matters:
// first match wins, so "Currency:Mtx" must precede "Currency:".
var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"Currency:Mtx", CategoryCurrencyMtx},
	{"Currency:", CategoryCurrency},
	{"Quest:", CategoryQuest},
	{"Weapon:", CategoryWeapon},
	{"Trap:", CategoryTrap},
	{"Ammo:", CategoryAmmo},
	{"Worker:", CategoryWorker},
	{"Hero:", CategoryHero},
	{"Schematic:", CategorySchematic},
	{"CardPack:", CategoryCardPack},
	{"Token:", CategoryToken},
	{"AccountResource:", CategoryAccountResource},
	{"HomebaseBannerIcon:", CategoryBannerIcon},
	{"HomebaseBannerColor:", CategoryBannerColor},
	{"AthenaCharacter:", CategoryCharacter},
	{"AthenaBackpack:", CategoryBackpack},
	{"AthenaPickaxe:", CategoryPickaxe},
	{"AthenaGlider:", CategoryGlider},
	{"AthenaSkyDiveContrail:", CategorySkyDiveContrail},
	{"AthenaMusicPack:", CategoryMusicPack},
	{"AthenaLoadingScreen:", CategoryLoadingScreen},
	{"AthenaDance:", CategoryDance},
	{"AthenaItemWrap:", CategoryItemWrap},
	{"CosmeticLocker:", CategoryCosmeticLocker},
	{"GiftBox:", CategoryGiftBox},
}

// CategoryOf resolves the category for a template id.
func CategoryOf(templateID string) Category {
	for _, entry := range categoryPrefixes {
		if strings.HasPrefix(templateID, entry.prefix) {
			return entry.category
		}
	}
	return CategoryOther
}

// Item is a single entry in a profile's item map.
type Item struct {
	TemplateID string
	Attributes map[string]any
	Quantity   int

	category Category
}

// NewItem creates an item with its category resolved from the template id.
func NewItem(templateID string, attributes map[string]any, quantity int) *Item {
	if attributes == nil {
		attributes = make(map[string]any)
	}
	return &Item{
		TemplateID: templateID,
		Attributes: attributes,
		Quantity:   quantity,
		category:   CategoryOf(templateID),
	}
}

// Category returns the item's resolved category.
func (i *Item) Category() Category {
	return i.category
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	attrs := make(map[string]any, len(i.Attributes))
	for k, v := range i.Attributes {
		attrs[k] = CloneValue(v)
	}
	return &Item{
		TemplateID: i.TemplateID,
		Attributes: attrs,
		Quantity:   i.Quantity,
		category:   i.category,
	}
}

// StringAttr returns a string attribute, or "" when absent or mistyped.
func (i *Item) StringAttr(name string) string {
	v, _ := i.Attributes[name].(string)
	return v
}

// BoolAttr returns a boolean attribute, or false when absent or mistyped.
func (i *Item) BoolAttr(name string) bool {
	v, _ := i.Attributes[name].(bool)
	return v
}

// IntAttr returns a numeric attribute as an int, or 0 when absent.
// JSON decoding produces float64 values; both representations are accepted.
func (i *Item) IntAttr(name string) int {
	switch v := i.Attributes[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

type itemJSON struct {
	TemplateID string         `json:"templateId"`
	Attributes map[string]any `json:"attributes"`
	Quantity   int            `json:"quantity"`
}

// MarshalJSON encodes the item in the protocol wire shape.
func (i *Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		TemplateID: i.TemplateID,
		Attributes: i.Attributes,
		Quantity:   i.Quantity,
	})
}

// UnmarshalJSON decodes the item and re-resolves its category.
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.TemplateID = raw.TemplateID
	i.Attributes = raw.Attributes
	if i.Attributes == nil {
		i.Attributes = make(map[string]any)
	}
	i.Quantity = raw.Quantity
	i.category = CategoryOf(raw.TemplateID)
	return nil
}

// CloneValue deep-copies attribute values built from JSON decoding.
func CloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, entry := range value {
			out[k] = CloneValue(entry)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for idx, entry := range value {
			out[idx] = CloneValue(entry)
		}
		return out
	default:
		return value
	}
}
