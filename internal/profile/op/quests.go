package op

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/homebase/internal/content"
	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

// maxDailyQuests caps concurrently-held daily quests per profile namespace.
const maxDailyQuests = 3

// Quest states. A quest auto-transitions from Active to Claimed when every
// completion counter is non-zero; claiming its reward moves it to Completed.
const (
	questStateActive    = "Active"
	questStateClaimed   = "Claimed"
	questStateCompleted = "Completed"
)

const completionPrefix = "completion_"

// ClientQuestLogin grants a new daily quest on the first login of the day
// and resets the daily reroll credit.
func ClientQuestLogin(ctx context.Context, c *Context) error {
	now := c.Env.Clock()
	manager := c.Profile.QuestManager()

	last, _ := time.Parse(time.RFC3339, stringValue(manager["dailyLoginInterval"]))
	if sameDay(last, now) {
		return nil
	}

	if len(c.dailyQuestIDs()) < maxDailyQuests {
		if definition, ok := c.pickEligibleDaily(nil); ok {
			if err := c.grantQuest(definition, now); err != nil {
				return err
			}
		}
	}

	manager["dailyLoginInterval"] = now.UTC().Format(time.RFC3339)
	manager["dailyQuestRerolls"] = 1
	c.Log.Append(change.StatModified("quest_manager", manager))
	return nil
}

// FortRerollDailyQuest swaps a held daily quest for a new random one,
// consuming one reroll credit.
func FortRerollDailyQuest(ctx context.Context, c *Context) error {
	var body struct {
		QuestID string `json:"questId"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.QuestID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "questId is required")
	}

	manager := c.Profile.QuestManager()
	rerolls := intValue(manager["dailyQuestRerolls"])
	if rerolls <= 0 {
		return apperrors.New(apperrors.CodeOperationForbidden, "no daily quest rerolls available")
	}

	quest := c.Profile.Item(body.QuestID)
	if quest == nil || quest.Category() != profile.CategoryQuest {
		return apperrors.WithMetadata(apperrors.CodeQuestNotFound,
			fmt.Sprintf("quest %s not found", body.QuestID),
			map[string]string{"questId": body.QuestID})
	}
	removedTemplate := quest.TemplateID

	delete(c.Profile.Items, body.QuestID)
	c.Log.Append(change.ItemRemoved(body.QuestID))

	now := c.Env.Clock()
	if definition, ok := c.pickEligibleDaily(map[string]bool{removedTemplate: true}); ok {
		if err := c.grantQuest(definition, now); err != nil {
			return err
		}
	}

	manager["dailyQuestRerolls"] = rerolls - 1
	c.Log.Append(change.StatModified("quest_manager", manager))
	return nil
}

// UpdateQuestClientObjectives overwrites completion counters named by the
// advance entries, then auto-claims any quest whose counters are all
// non-zero. Counter writes are last-write-wins, not additive.
func UpdateQuestClientObjectives(ctx context.Context, c *Context) error {
	var body struct {
		Advance []struct {
			StatName string `json:"statName"`
			Count    int    `json:"count"`
		} `json:"advance"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if len(body.Advance) == 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "advance is required")
	}

	touched := make(map[string]bool)
	for _, advance := range body.Advance {
		if advance.StatName == "" {
			return apperrors.New(apperrors.CodeInvalidPayload, "advance statName is required")
		}
		wanted := completionPrefix + strings.ToLower(advance.StatName)
		for _, questID := range c.Profile.ItemsByCategory(profile.CategoryQuest) {
			quest := c.Profile.Items[questID]
			for attrName := range quest.Attributes {
				if strings.ToLower(attrName) != wanted {
					continue
				}
				quest.Attributes[attrName] = advance.Count
				c.Log.Append(change.ItemAttrChanged(questID, attrName, advance.Count))
				touched[questID] = true
			}
		}
	}

	now := c.Env.Clock()
	for _, questID := range c.Profile.SortedItemIDs() {
		if !touched[questID] {
			continue
		}
		quest := c.Profile.Items[questID]
		if quest.StringAttr("quest_state") != questStateActive {
			continue
		}
		if !allObjectivesComplete(quest) {
			continue
		}
		stamp := now.UTC().Format(time.RFC3339)
		quest.Attributes["quest_state"] = questStateClaimed
		quest.Attributes["last_state_change_time"] = stamp
		c.Log.Append(change.ItemAttrChanged(questID, "quest_state", questStateClaimed))
		c.Log.Append(change.ItemAttrChanged(questID, "last_state_change_time", stamp))
	}
	return nil
}

// ClaimQuestReward pays out a completed quest. Rewards route to different
// profiles by template category: world gear goes to the stash, banner and
// founder grants to the account profile, everything else stays local.
func ClaimQuestReward(ctx context.Context, c *Context) error {
	var body struct {
		QuestID             string `json:"questId"`
		SelectedRewardIndex *int   `json:"selectedRewardIndex"`
	}
	if err := c.Decode(&body); err != nil {
		return err
	}
	if body.QuestID == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "questId is required")
	}

	quest := c.Profile.Item(body.QuestID)
	if quest == nil || quest.Category() != profile.CategoryQuest {
		return apperrors.WithMetadata(apperrors.CodeQuestNotFound,
			fmt.Sprintf("quest %s not found", body.QuestID),
			map[string]string{"questId": body.QuestID})
	}
	if quest.StringAttr("quest_state") != questStateClaimed {
		return apperrors.New(apperrors.CodeQuestNotCompleted,
			fmt.Sprintf("quest %s is not completed", body.QuestID))
	}

	rewardSets, ok := c.Env.Content.QuestRewards(quest.TemplateID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("no reward table for %s", quest.TemplateID),
			map[string]string{"templateId": quest.TemplateID})
	}
	index := 0
	if body.SelectedRewardIndex != nil {
		index = *body.SelectedRewardIndex
	}
	if index < 0 || index >= len(rewardSets) {
		return apperrors.New(apperrors.CodeInvalidPayload,
			fmt.Sprintf("reward index %d out of range", index))
	}

	for _, grant := range rewardSets[index] {
		targetID := rewardProfile(c.Profile.ProfileID, grant.TemplateID)
		target, log, err := c.target(ctx, targetID)
		if err != nil {
			return err
		}
		if _, err := grantItem(target, log, c.Env.NewID, grant.TemplateID, grant.Quantity, nil); err != nil {
			return err
		}
	}

	stamp := c.Env.Clock().UTC().Format(time.RFC3339)
	quest.Attributes["quest_state"] = questStateCompleted
	quest.Attributes["last_state_change_time"] = stamp
	c.Log.Append(change.ItemAttrChanged(body.QuestID, "quest_state", questStateCompleted))
	c.Log.Append(change.ItemAttrChanged(body.QuestID, "last_state_change_time", stamp))
	return nil
}

// ClaimLoginReward pays the campaign daily login reward once per day.
func ClaimLoginReward(ctx context.Context, c *Context) error {
	now := c.Env.Clock()
	rewards := c.Profile.DailyRewards()

	lastClaim, _ := time.Parse(time.RFC3339, stringValue(rewards["lastClaimDate"]))
	if sameDay(lastClaim, now) {
		return apperrors.New(apperrors.CodeAlreadyClaimedToday, "daily reward already claimed")
	}

	if _, err := grantItem(c.Profile, c.Log, c.Env.NewID, "AccountResource:currency_xrayllama", 25, nil); err != nil {
		return err
	}

	rewards["nextDefaultReward"] = intValue(rewards["nextDefaultReward"]) + 1
	rewards["totalDaysLoggedIn"] = intValue(rewards["totalDaysLoggedIn"]) + 1
	rewards["lastClaimDate"] = now.UTC().Format(time.RFC3339)
	c.Log.Append(change.StatModified("daily_rewards", rewards))
	return nil
}

// dailyQuestIDs returns held quest items from the daily pool.
func (c *Context) dailyQuestIDs() []string {
	var ids []string
	for _, questID := range c.Profile.ItemsByCategory(profile.CategoryQuest) {
		if c.Profile.Items[questID].StringAttr("quest_pool") == "daily" {
			ids = append(ids, questID)
		}
	}
	return ids
}

// pickEligibleDaily selects a random daily quest definition the player
// doesn't already hold. Excluded templates are also skipped.
func (c *Context) pickEligibleDaily(excluded map[string]bool) (content.QuestDefinition, bool) {
	held := make(map[string]bool)
	for _, questID := range c.Profile.ItemsByCategory(profile.CategoryQuest) {
		held[c.Profile.Items[questID].TemplateID] = true
	}

	var eligible []content.QuestDefinition
	for _, definition := range c.Env.Content.DailyQuestPool() {
		if held[definition.TemplateID] || excluded[definition.TemplateID] {
			continue
		}
		eligible = append(eligible, definition)
	}
	if len(eligible) == 0 {
		return content.QuestDefinition{}, false
	}
	return eligible[c.Env.Rand.IntN(len(eligible))], true
}

// grantQuest adds a daily quest item with zeroed completion counters.
func (c *Context) grantQuest(definition content.QuestDefinition, now time.Time) error {
	stamp := now.UTC().Format(time.RFC3339)
	attributes := map[string]any{
		"creation_time":          stamp,
		"quest_state":            questStateActive,
		"last_state_change_time": stamp,
		"quest_pool":             "daily",
		"sent_new_notification":  false,
		"xp_reward_scalar":       1,
	}
	for objective := range definition.Objectives {
		attributes[completionPrefix+objective] = 0
	}
	_, err := grantItem(c.Profile, c.Log, c.Env.NewID, definition.TemplateID, 1, attributes)
	return err
}

// allObjectivesComplete is a pure AND across every completion counter.
func allObjectivesComplete(quest *profile.Item) bool {
	found := false
	for attrName := range quest.Attributes {
		if !strings.HasPrefix(strings.ToLower(attrName), completionPrefix) {
			continue
		}
		found = true
		if quest.IntAttr(attrName) == 0 {
			return false
		}
	}
	return found
}

// rewardProfile routes a quest reward to its destination namespace.
func rewardProfile(questProfileID, templateID string) string {
	switch profile.CategoryOf(templateID) {
	case profile.CategoryWeapon, profile.CategoryTrap, profile.CategoryAmmo:
		return profile.NamespaceOutpost
	case profile.CategoryBannerIcon, profile.CategoryBannerColor:
		return profile.NamespaceCommonCore
	}
	if strings.HasPrefix(templateID, "Token:founder") {
		return profile.NamespaceCommonCore
	}
	return questProfileID
}

// sameDay reports whether two instants fall on the same UTC calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// intValue coerces attribute values that may arrive as JSON numbers.
func intValue(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func stringValue(v any) string {
	value, _ := v.(string)
	return value
}
