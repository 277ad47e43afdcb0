package op

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// Rarity grades campaign items. It is encoded as a token inside the
// template id ("wid_assault_vr_ore_t03").
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var rarityTokens = []struct {
	token  string
	rarity Rarity
}{
	{"_sr_", RarityLegendary},
	{"_vr_", RarityEpic},
	{"_uc_", RarityUncommon},
	{"_r_", RarityRare},
	{"_c_", RarityCommon},
}

// RarityOf extracts the rarity token from a template id. Templates without
// a token grade as common.
func RarityOf(templateID string) Rarity {
	for _, entry := range rarityTokens {
		if strings.Contains(templateID, entry.token) {
			return entry.rarity
		}
	}
	return RarityCommon
}

// TierOf extracts the numeric tier from a template id's "_tNN" suffix.
// Templates without one are tier 1.
func TierOf(templateID string) int {
	index := strings.LastIndex(templateID, "_t")
	if index < 0 {
		return 1
	}
	tier, err := strconv.Atoi(templateID[index+2:])
	if err != nil || tier < 1 {
		return 1
	}
	return tier
}

// Cost scaling tables. Content-balance constants, not protocol rules.
var craftingMultiplier = map[Rarity]float64{
	RarityCommon:    1,
	RarityUncommon:  1.5,
	RarityRare:      2,
	RarityEpic:      3,
	RarityLegendary: 5,
}

var upgradeMultiplier = map[Rarity]int{
	RarityCommon:    1,
	RarityUncommon:  2,
	RarityRare:      4,
	RarityEpic:      8,
	RarityLegendary: 16,
}

var upgradeBaseCost = map[string]int{
	"AccountResource:reagent_c_t01": 10,
	"AccountResource:heroxp":        50,
}

var promoteBaseCost = map[string]int{
	"AccountResource:reagent_promotion": 50,
}

var craftBaseCost = map[string]int{
	"AccountResource:ore_copper":  12,
	"AccountResource:blastpowder": 4,
}

// UpgradeCost prices a one-level upgrade for the given template.
func UpgradeCost(templateID string) map[string]int {
	multiplier := upgradeMultiplier[RarityOf(templateID)]
	cost := make(map[string]int, len(upgradeBaseCost))
	for resource, base := range upgradeBaseCost {
		cost[resource] = base * multiplier
	}
	return cost
}

// PromoteCost prices a rarity promotion for the given template.
func PromoteCost(templateID string) map[string]int {
	multiplier := craftingMultiplier[RarityOf(templateID)]
	cost := make(map[string]int, len(promoteBaseCost))
	for resource, base := range promoteBaseCost {
		cost[resource] = int(float64(base) * multiplier)
	}
	return cost
}

// CraftCost prices crafting one item from the given schematic.
func CraftCost(schematicTemplateID string, count int) map[string]int {
	multiplier := craftingMultiplier[RarityOf(schematicTemplateID)]
	tier := TierOf(schematicTemplateID)
	cost := make(map[string]int, len(craftBaseCost))
	for resource, base := range craftBaseCost {
		cost[resource] = int(float64(base*tier)*multiplier) * count
	}
	return cost
}

// expeditionPower rates a squad of heroes. Each hero contributes its level
// scaled by rarity and tier; the rating is the plain sum.
func expeditionPower(heroes []*profile.Item) float64 {
	total := 0.0
	for _, hero := range heroes {
		level := hero.IntAttr("level")
		if level < 1 {
			level = 1
		}
		total += float64(level) * craftingMultiplier[RarityOf(hero.TemplateID)] * float64(TierOf(hero.TemplateID))
	}
	return total
}

// UpgradeItem raises a campaign item one level after a two-phase resource
// spend.
func UpgradeItem(ctx context.Context, c *Context) error {
	var body struct {
		TargetItemID string `json:"targetItemId"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.TargetItemID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "targetItemId is required")
	}

	item := c.Profile.Item(body.TargetItemID)
	if item == nil {
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("item %s not found", body.TargetItemID),
			map[string]string{"itemId": body.TargetItemID})
	}

	if err := spendResources(c.Profile, c.Log, UpgradeCost(item.TemplateID)); err != nil {
		return err
	}

	level := item.IntAttr("level") + 1
	item.Attributes["level"] = level
	c.Log.Append(change.ItemAttrChanged(body.TargetItemID, "level", level))
	return nil
}

// UpgradeItemRarity promotes an item to the next rarity grade. The item is
// reissued under its promoted template id with its attributes carried over.
func UpgradeItemRarity(ctx context.Context, c *Context) error {
	var body struct {
		TargetItemID string `json:"targetItemId"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.TargetItemID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "targetItemId is required")
	}

	item := c.Profile.Item(body.TargetItemID)
	if item == nil {
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("item %s not found", body.TargetItemID),
			map[string]string{"itemId": body.TargetItemID})
	}
	promoted, ok := promoteTemplate(item.TemplateID)
	if !ok {
		return apperrors.New(apperrors.CodeOperationForbidden,
			fmt.Sprintf("item %s is already at maximum rarity", body.TargetItemID))
	}

	if err := spendResources(c.Profile, c.Log, PromoteCost(item.TemplateID)); err != nil {
		return err
	}

	newID, err := c.Env.NewID()
	if err != nil {
		return err
	}
	reissued := profile.NewItem(promoted, item.Clone().Attributes, item.Quantity)
	delete(c.Profile.Items, body.TargetItemID)
	c.Log.Append(change.ItemRemoved(body.TargetItemID))
	c.Profile.Items[newID] = reissued
	c.Log.Append(change.ItemAdded(newID, reissued))
	return nil
}

// CraftWorldItem turns a schematic into the world item it describes.
func CraftWorldItem(ctx context.Context, c *Context) error {
	var body struct {
		TargetSchematicItemID string `json:"targetSchematicItemId"`
		Count                 int    `json:"count"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.TargetSchematicItemID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "targetSchematicItemId is required")
	}
	if body.Count == 0 {
		body.Count = 1
	}
	if body.Count < 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "count must be positive")
	}

	schematic := c.Profile.Item(body.TargetSchematicItemID)
	if schematic == nil || schematic.Category() != profile.CategorySchematic {
		return apperrors.WithMetadata(apperrors.CodeItemNotFound,
			fmt.Sprintf("schematic %s not found", body.TargetSchematicItemID),
			map[string]string{"itemId": body.TargetSchematicItemID})
	}

	if err := spendResources(c.Profile, c.Log, CraftCost(schematic.TemplateID, body.Count)); err != nil {
		return err
	}

	crafted := craftedTemplate(schematic.TemplateID)
	attributes := map[string]any{
		"level":      max(schematic.IntAttr("level"), 1),
		"durability": 100,
		"item_seen":  false,
		"favorite":   false,
	}
	if _, err := grantItem(c.Profile, c.Log, c.Env.NewID, crafted, body.Count, attributes); err != nil {
		return err
	}
	return nil
}

// DestroyWorldItems removes the named world items, silently skipping ids
// that no longer exist.
func DestroyWorldItems(ctx context.Context, c *Context) error {
	var body struct {
		ItemIDs []string `json:"itemIds"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if len(body.ItemIDs) == 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "itemIds is required")
	}

	for _, itemID := range body.ItemIDs {
		if c.Profile.Item(itemID) == nil {
			continue
		}
		delete(c.Profile.Items, itemID)
		c.Log.Append(change.ItemRemoved(itemID))
	}
	return nil
}

// spendResources is the two-phase multi-resource spend: every balance is
// verified before any stack is touched, so a short balance mutates nothing.
func spendResources(p *profile.Profile, log *change.Log, costs map[string]int) error {
	templates := make([]string, 0, len(costs))
	for templateID := range costs {
		templates = append(templates, templateID)
	}
	sort.Strings(templates)

	for _, templateID := range templates {
		available := 0
		for _, itemID := range p.SortedItemIDs() {
			if item := p.Items[itemID]; item.TemplateID == templateID {
				available += item.Quantity
			}
		}
		if available < costs[templateID] {
			return apperrors.WithMetadata(apperrors.CodeInsufficientResources,
				fmt.Sprintf("need %d of %s, have %d", costs[templateID], templateID, available),
				map[string]string{"templateId": templateID})
		}
	}

	for _, templateID := range templates {
		if err := spendResource(p, log, templateID, costs[templateID]); err != nil {
			return err
		}
	}
	return nil
}

// promoteTemplate rewrites a template id's rarity token to the next grade.
func promoteTemplate(templateID string) (string, bool) {
	promotions := []struct{ from, to string }{
		{"_c_", "_uc_"},
		{"_uc_", "_r_"},
		{"_r_", "_vr_"},
		{"_vr_", "_sr_"},
	}
	switch RarityOf(templateID) {
	case RarityCommon:
		if !strings.Contains(templateID, "_c_") {
			return "", false
		}
	case RarityLegendary:
		return "", false
	}
	for _, promotion := range promotions {
		if strings.Contains(templateID, promotion.from) {
			return strings.Replace(templateID, promotion.from, promotion.to, 1), true
		}
	}
	return "", false
}

// craftedTemplate derives the world item template a schematic produces.
func craftedTemplate(schematicTemplateID string) string {
	name := strings.TrimPrefix(schematicTemplateID, "Schematic:")
	switch {
	case strings.HasPrefix(name, "sid_trap"):
		return "Trap:tid_" + strings.TrimPrefix(name, "sid_trap_")
	case strings.HasPrefix(name, "sid_"):
		return "Weapon:wid_" + strings.TrimPrefix(name, "sid_")
	default:
		return "Weapon:wid_" + name
	}
}
