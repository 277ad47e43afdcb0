package op

import (
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
)

func seedDailyQuest(p *profile.Profile, itemID, templateID string, objectives map[string]int) {
	attributes := map[string]any{
		"quest_state": questStateActive,
		"quest_pool":  "daily",
	}
	for name, count := range objectives {
		_ = count
		attributes[completionPrefix+name] = 0
	}
	p.Items[itemID] = profile.NewItem(templateID, attributes, 1)
}

func TestClientQuestLoginGrantsDaily(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)

	c := run(t, env, p, ClientQuestLogin, `{}`)

	quests := p.ItemsByCategory(profile.CategoryQuest)
	if len(quests) != 1 {
		t.Fatalf("expected 1 quest granted, got %d", len(quests))
	}
	quest := p.Items[quests[0]]
	if !strings.HasPrefix(quest.TemplateID, "Quest:athenadaily_") {
		t.Fatalf("expected a daily pool quest, got %s", quest.TemplateID)
	}
	if quest.StringAttr("quest_state") != questStateActive {
		t.Fatalf("expected new quest active, got %s", quest.StringAttr("quest_state"))
	}
	if c.Log.Len() != 2 {
		t.Fatalf("expected itemAdded plus quest_manager record, got %d", c.Log.Len())
	}
	manager := p.QuestManager()
	if manager["dailyQuestRerolls"] != 1 {
		t.Fatalf("expected reroll credit reset, got %v", manager["dailyQuestRerolls"])
	}
}

func TestClientQuestLoginSameDayIsNoop(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	manager := p.QuestManager()
	manager["dailyLoginInterval"] = testTime.Add(-2 * time.Hour).Format(time.RFC3339)

	c := run(t, env, p, ClientQuestLogin, `{}`)
	if c.Log.Len() != 0 {
		t.Fatalf("expected no changes on same-day login, got %d", c.Log.Len())
	}
}

func TestClientQuestLoginRespectsDailyCap(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	seedDailyQuest(p, "q1", "Quest:athenadaily_play_matches", map[string]int{"play_matches": 3})
	seedDailyQuest(p, "q2", "Quest:athenadaily_top10", map[string]int{"top10_placements": 1})
	seedDailyQuest(p, "q3", "Quest:athenadaily_deal_damage", map[string]int{"deal_damage": 500})

	run(t, env, p, ClientQuestLogin, `{}`)

	if got := len(p.ItemsByCategory(profile.CategoryQuest)); got != 3 {
		t.Fatalf("expected quest count capped at 3, got %d", got)
	}
}

func TestFortRerollDailyQuest(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	seedDailyQuest(p, "q1", "Quest:athenadaily_play_matches", map[string]int{"play_matches": 3})
	p.QuestManager()["dailyQuestRerolls"] = 1

	run(t, env, p, FortRerollDailyQuest, `{"questId":"q1"}`)

	if p.Item("q1") != nil {
		t.Fatal("expected rerolled quest removed")
	}
	quests := p.ItemsByCategory(profile.CategoryQuest)
	if len(quests) != 1 {
		t.Fatalf("expected a replacement quest, got %d", len(quests))
	}
	if p.Items[quests[0]].TemplateID == "Quest:athenadaily_play_matches" {
		t.Fatal("expected replacement to differ from the removed quest")
	}
	if got := p.QuestManager()["dailyQuestRerolls"]; got != 0 {
		t.Fatalf("expected reroll credit consumed, got %v", got)
	}
}

func TestFortRerollDailyQuestWithoutCredits(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	seedDailyQuest(p, "q1", "Quest:athenadaily_play_matches", map[string]int{"play_matches": 3})
	p.QuestManager()["dailyQuestRerolls"] = 0

	err := runErr(t, env, p, FortRerollDailyQuest, `{"questId":"q1"}`)
	wantCode(t, err, apperrors.CodeOperationForbidden)
	if p.Item("q1") == nil {
		t.Fatal("expected quest untouched after failed reroll")
	}
}

func TestUpdateQuestClientObjectivesAndGate(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	p.Items["q1"] = profile.NewItem("Quest:athenadaily_play_matches", map[string]any{
		"quest_state":  questStateActive,
		"completion_a": 0,
		"completion_b": 0,
	}, 1)

	c := run(t, env, p, UpdateQuestClientObjectives, `{"advance":[{"statName":"A","count":1}]}`)
	if got := p.Items["q1"].StringAttr("quest_state"); got != questStateActive {
		t.Fatalf("expected quest still active with one counter zero, got %s", got)
	}
	if c.Log.Len() != 1 {
		t.Fatalf("expected only the counter record, got %d", c.Log.Len())
	}

	c = run(t, env, p, UpdateQuestClientObjectives, `{"advance":[{"statName":"b","count":2}]}`)
	if got := p.Items["q1"].StringAttr("quest_state"); got != questStateClaimed {
		t.Fatalf("expected auto-claim once all counters non-zero, got %s", got)
	}

	var sawState, sawStamp bool
	for _, record := range c.Log.Records() {
		if record.Type == change.TypeItemAttrChanged && record.AttributeName == "quest_state" {
			sawState = true
		}
		if record.Type == change.TypeItemAttrChanged && record.AttributeName == "last_state_change_time" {
			sawStamp = true
		}
	}
	if !sawState || !sawStamp {
		t.Fatalf("expected quest_state and last_state_change_time records, got %+v", c.Log.Records())
	}
}

func TestUpdateQuestClientObjectivesLastWriteWins(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	p.Items["q1"] = profile.NewItem("Quest:athenadaily_deal_damage", map[string]any{
		"quest_state":            questStateActive,
		"completion_deal_damage": 400,
	}, 1)

	run(t, env, p, UpdateQuestClientObjectives, `{"advance":[{"statName":"deal_damage","count":100}]}`)
	if got := p.Items["q1"].IntAttr("completion_deal_damage"); got != 100 {
		t.Fatalf("expected counter overwritten to 100, got %d", got)
	}
}

func TestClaimQuestRewardRequiresClaimedState(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	p.Items["q1"] = profile.NewItem("Quest:athenadaily_top10", map[string]any{
		"quest_state": questStateActive,
	}, 1)

	err := runErr(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)
	wantCode(t, err, apperrors.CodeQuestNotCompleted)
}

func TestClaimQuestRewardRoutesAcrossProfiles(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceOutpost))
	store.Seed(profile.New("acct", profile.NamespaceCommonCore))
	p := profile.New("acct", profile.NamespaceCampaign)
	p.Items["q1"] = profile.NewItem("Quest:homebaseonboarding", map[string]any{
		"quest_state": questStateClaimed,
	}, 1)

	c := run(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)

	secondaries := c.Secondaries()
	if len(secondaries) != 2 {
		t.Fatalf("expected outpost and common_core touched, got %d", len(secondaries))
	}

	var outpost, core *Secondary
	for _, secondary := range secondaries {
		switch secondary.Profile.ProfileID {
		case profile.NamespaceOutpost:
			outpost = secondary
		case profile.NamespaceCommonCore:
			core = secondary
		}
	}
	if outpost == nil || core == nil {
		t.Fatal("expected both destination profiles loaded")
	}
	if outpost.Profile.FindByTemplateID("Weapon:wid_assault_autoshot_c_t01") == "" {
		t.Fatal("expected weapon routed to the stash profile")
	}
	if core.Profile.FindByTemplateID("HomebaseBannerIcon:standardbanner_founder") == "" {
		t.Fatal("expected banner routed to the account profile")
	}
	if p.FindByTemplateID("AccountResource:currency_xrayllama") == "" {
		t.Fatal("expected resource kept on the quest's own profile")
	}
	if got := p.Items["q1"].StringAttr("quest_state"); got != questStateCompleted {
		t.Fatalf("expected quest completed after claim, got %s", got)
	}
}

func TestClaimQuestRewardAlternativeSet(t *testing.T) {
	env, store := testEnv(t)
	store.Seed(profile.New("acct", profile.NamespaceOutpost))
	p := profile.New("acct", profile.NamespaceCampaign)
	p.Items["q1"] = profile.NewItem("Quest:stonewood_stormshield_defense", map[string]any{
		"quest_state": questStateClaimed,
	}, 1)

	run(t, env, p, ClaimQuestReward, `{"questId":"q1","selectedRewardIndex":1}`)

	if p.FindByTemplateID("Hero:hid_soldier_rescue_uc_t02") == "" {
		t.Fatal("expected the alternative hero reward")
	}
	if p.FindByTemplateID("Trap:tid_wall_launcher_uc_t02") != "" {
		t.Fatal("did not expect the default reward set")
	}
}

func TestClaimQuestRewardDoubleClaim(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	p.Items["q1"] = profile.NewItem("Quest:athenadaily_top10", map[string]any{
		"quest_state": questStateClaimed,
	}, 1)

	run(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)
	err := runErr(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)
	wantCode(t, err, apperrors.CodeQuestNotCompleted)
}

func TestObjectiveAdvanceDoesNotReopenCompletedQuest(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceAthena)
	p.Items["q1"] = profile.NewItem("Quest:athenadaily_top10", map[string]any{
		"quest_state":                 questStateClaimed,
		"completion_top10_placements": 1,
	}, 1)

	run(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)
	if got := p.Items["q1"].StringAttr("quest_state"); got != questStateCompleted {
		t.Fatalf("expected quest completed after claim, got %s", got)
	}

	run(t, env, p, UpdateQuestClientObjectives, `{"advance":[{"statName":"top10_placements","count":2}]}`)
	if got := p.Items["q1"].StringAttr("quest_state"); got != questStateCompleted {
		t.Fatalf("expected completed quest untouched by later advances, got %s", got)
	}

	err := runErr(t, env, p, ClaimQuestReward, `{"questId":"q1"}`)
	wantCode(t, err, apperrors.CodeQuestNotCompleted)
}

func TestClaimLoginReward(t *testing.T) {
	env, _ := testEnv(t)
	p := profile.New("acct", profile.NamespaceCampaign)

	run(t, env, p, ClaimLoginReward, `{}`)

	rewards := p.DailyRewards()
	if rewards["totalDaysLoggedIn"] != 1 {
		t.Fatalf("expected totalDaysLoggedIn 1, got %v", rewards["totalDaysLoggedIn"])
	}
	if p.FindByTemplateID("AccountResource:currency_xrayllama") == "" {
		t.Fatal("expected daily reward granted")
	}

	err := runErr(t, env, p, ClaimLoginReward, `{}`)
	wantCode(t, err, apperrors.CodeAlreadyClaimedToday)
}
