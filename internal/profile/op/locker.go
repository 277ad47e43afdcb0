package op

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// slotConfig describes one locker slot family.
type slotConfig struct {
	statName  string
	category  profile.Category
	size      int
	clearable bool
	// placeholders are template ids a client may slot without owning them
	// (random/empty sentinels).
	placeholders map[string]bool
}

// lockerSlots is the closed set of equippable slot names.
var lockerSlots = map[string]slotConfig{
	"Character": {
		statName: "favorite_character", category: profile.CategoryCharacter, size: 1, clearable: true,
		placeholders: map[string]bool{"AthenaCharacter:cid_random": true},
	},
	"Backpack": {
		statName: "favorite_backpack", category: profile.CategoryBackpack, size: 1, clearable: true,
	},
	"Pickaxe": {
		statName: "favorite_pickaxe", category: profile.CategoryPickaxe, size: 1, clearable: false,
		placeholders: map[string]bool{"AthenaPickaxe:pickaxe_random": true},
	},
	"Glider": {
		statName: "favorite_glider", category: profile.CategoryGlider, size: 1, clearable: false,
		placeholders: map[string]bool{"AthenaGlider:glider_random": true},
	},
	"SkyDiveContrail": {
		statName: "favorite_skydivecontrail", category: profile.CategorySkyDiveContrail, size: 1, clearable: true,
		placeholders: map[string]bool{"AthenaSkyDiveContrail:trails_random": true},
	},
	"MusicPack": {
		statName: "favorite_musicpack", category: profile.CategoryMusicPack, size: 1, clearable: true,
	},
	"LoadingScreen": {
		statName: "favorite_loadingscreen", category: profile.CategoryLoadingScreen, size: 1, clearable: true,
	},
	"Dance": {
		statName: "favorite_dance", category: profile.CategoryDance, size: profile.DanceSlots, clearable: true,
	},
	"ItemWrap": {
		statName: "favorite_itemwraps", category: profile.CategoryItemWrap, size: profile.ItemWrapSlots, clearable: true,
		placeholders: map[string]bool{"AthenaItemWrap:wrap_random": true},
	},
}

type variantUpdate struct {
	Channel string `json:"channel"`
	Active  string `json:"active"`
}

// EquipBattleRoyaleCustomization assigns an item to a locker slot and
// optionally applies cosmetic variant selections on it.
func EquipBattleRoyaleCustomization(ctx context.Context, c *Context) error {
	var body struct {
		SlotName        string          `json:"slotName"`
		ItemToSlot      string          `json:"itemToSlot"`
		IndexWithinSlot *int            `json:"indexWithinSlot"`
		VariantUpdates  []variantUpdate `json:"variantUpdates"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}

	slot, ok := lockerSlots[body.SlotName]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeInvalidPayload,
			fmt.Sprintf("unknown slot %q", body.SlotName),
			map[string]string{"slotName": body.SlotName})
	}

	ownedItem := c.Profile.Item(body.ItemToSlot)
	switch {
	case body.ItemToSlot == "":
		if !slot.clearable {
			return apperrors.New(apperrors.CodeRequiredItemMissing,
				fmt.Sprintf("slot %s cannot be emptied", body.SlotName))
		}
	case ownedItem != nil:
		if ownedItem.Category() != slot.category {
			return apperrors.New(apperrors.CodeInvalidPayload,
				fmt.Sprintf("item %s does not fit slot %s", body.ItemToSlot, body.SlotName))
		}
	case slot.placeholders[body.ItemToSlot]:
		// Sentinel values equip without ownership.
	default:
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("item %s not found", body.ItemToSlot),
			map[string]string{"itemId": body.ItemToSlot})
	}

	if slot.size == 1 {
		c.Profile.SetAttribute(slot.statName, body.ItemToSlot)
		c.Log.Append(change.StatModified(slot.statName, body.ItemToSlot))
	} else {
		index := 0
		if body.IndexWithinSlot != nil {
			index = *body.IndexWithinSlot
		}
		if index < -1 || index >= slot.size {
			return apperrors.New(apperrors.CodeInvalidPayload,
				fmt.Sprintf("index %d out of range for slot %s", index, body.SlotName))
		}
		slots := c.Profile.FavoriteDances()
		if slot.category == profile.CategoryItemWrap {
			slots = c.Profile.FavoriteItemWraps()
		}
		if index == -1 {
			for i := range slots {
				slots[i] = body.ItemToSlot
			}
		} else {
			slots[index] = body.ItemToSlot
		}
		c.Log.Append(change.StatModified(slot.statName, slots))
	}

	if ownedItem != nil && len(body.VariantUpdates) > 0 {
		if applyVariantUpdates(ownedItem, body.VariantUpdates) {
			c.Log.Append(change.ItemAttrChanged(body.ItemToSlot, "variants", ownedItem.Attributes["variants"]))
		}
	}
	return nil
}

// applyVariantUpdates activates requested variant values on an item. A value
// is applied only when it is present in the channel's owned set; anything
// else is silently ignored.
func applyVariantUpdates(item *profile.Item, updates []variantUpdate) bool {
	variants, _ := item.Attributes["variants"].([]any)
	changed := false
	for _, update := range updates {
		for _, entry := range variants {
			variant, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			channel, _ := variant["channel"].(string)
			if channel != update.Channel {
				continue
			}
			owned, _ := variant["owned"].([]any)
			for _, value := range owned {
				if value == update.Active {
					variant["active"] = update.Active
					changed = true
					break
				}
			}
		}
	}
	return changed
}

// SetCosmeticLockerSlot writes one slot of a locker preset item.
func SetCosmeticLockerSlot(ctx context.Context, c *Context) error {
	var body struct {
		LockerItem string `json:"lockerItem"`
		Category   string `json:"category"`
		ItemToSlot string `json:"itemToSlot"`
		SlotIndex  *int   `json:"slotIndex"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}

	locker := c.Profile.Item(body.LockerItem)
	if locker == nil || locker.Category() != profile.CategoryCosmeticLocker {
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("locker item %s not found", body.LockerItem),
			map[string]string{"itemId": body.LockerItem})
	}
	slot, ok := lockerSlots[body.Category]
	if !ok {
		return apperrors.New(apperrors.CodeInvalidPayload,
			fmt.Sprintf("unknown slot %q", body.Category))
	}

	// Presets reference templates, not item guids.
	if body.ItemToSlot == "" {
		if !slot.clearable {
			return apperrors.New(apperrors.CodeRequiredItemMissing,
				fmt.Sprintf("slot %s cannot be emptied", body.Category))
		}
	} else if !slot.placeholders[body.ItemToSlot] {
		if !strings.HasPrefix(body.ItemToSlot, "Athena"+body.Category+":") {
			return apperrors.New(apperrors.CodeInvalidPayload,
				fmt.Sprintf("template %s does not fit slot %s", body.ItemToSlot, body.Category))
		}
		if c.Profile.FindByTemplateID(body.ItemToSlot) == "" {
			return apperrors.WithMetadata(apperrors.CodeItemNotFound,
				fmt.Sprintf("template %s not owned", body.ItemToSlot),
				map[string]string{"templateId": body.ItemToSlot})
		}
	}

	index := 0
	if body.SlotIndex != nil {
		index = *body.SlotIndex
	}
	if index < 0 || index >= slot.size {
		return apperrors.New(apperrors.CodeInvalidPayload,
			fmt.Sprintf("index %d out of range for slot %s", index, body.Category))
	}

	// Preset data is a loose document; edit it by path so unknown fields
	// written by other clients survive the round trip.
	doc := []byte(`{"slots":{}}`)
	if existing, ok := locker.Attributes["locker_slots_data"]; ok {
		encoded, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("encode locker slots: %w", err)
		}
		doc = encoded
	}

	items := make([]any, slot.size)
	for i := range items {
		items[i] = ""
	}
	for i, value := range gjson.GetBytes(doc, "slots."+body.Category+".items").Array() {
		if i < slot.size {
			items[i] = value.String()
		}
	}
	items[index] = body.ItemToSlot

	doc, err := sjson.SetBytes(doc, "slots."+body.Category+".items", items)
	if err != nil {
		return fmt.Errorf("write locker slot: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(doc, &data); err != nil {
		return fmt.Errorf("decode locker slots: %w", err)
	}
	locker.Attributes["locker_slots_data"] = data

	c.Log.Append(change.ItemAttrChanged(body.LockerItem, "locker_slots_data", data))
	return nil
}
