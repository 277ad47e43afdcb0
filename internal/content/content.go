// Package content loads the read-only game definitions the mutation handlers
// consume: storefront catalogs, battle passes, quest tables, reward tables
// and card-pack pools.
//
// The definition files keep the loosely-structured shape of the source
// material, so lookups go through gjson rather than rigid schema structs;
// typed definitions are extracted once at load time.
package content

import (
	"embed"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

//go:embed data/*.json
var dataFS embed.FS

// Price is one way to pay for an offer.
type Price struct {
	CurrencyType    string
	CurrencySubType string
	FinalPrice      int
}

// ItemGrant is one item granted by an offer, reward tier or quest reward.
type ItemGrant struct {
	TemplateID string
	Quantity   int
}

// Offer is a purchasable storefront entry.
type Offer struct {
	OfferID    string
	DevName    string
	Storefront string
	Prices     []Price
	ItemGrants []ItemGrant
}

// BattlePassTier is one rung of a season's reward ladder.
type BattlePassTier struct {
	Tier int
	Free []ItemGrant
	Paid []ItemGrant
}

// BattlePass is a season-scoped reward ladder definition.
type BattlePass struct {
	Season        int
	TierCount     int
	PassOfferID   string
	BundleOfferID string
	TierOfferID   string
	Tiers         []BattlePassTier
}

// QuestDefinition describes a grantable quest and its objectives.
type QuestDefinition struct {
	TemplateID string
	Objectives map[string]int
}

// WeightedGrant is a card-pack pool candidate with a selection weight.
type WeightedGrant struct {
	TemplateID string
	Quantity   int
	Weight     int
}

// CardPack is a randomized loot pack definition.
type CardPack struct {
	TemplateID string
	DrawCount  int
	ChoicePack string
	Pool       []WeightedGrant
}

// Store holds all loaded definitions. Stores are immutable after Load.
type Store struct {
	offers      map[string]Offer
	storefronts []string
	battlePass  map[int]BattlePass
	dailyQuests []QuestDefinition
	rewards     map[string][][]ItemGrant
	cardPacks   map[string]CardPack
}

// Load parses the embedded definition files.
func Load() (*Store, error) {
	store := &Store{
		offers:     make(map[string]Offer),
		battlePass: make(map[int]BattlePass),
		rewards:    make(map[string][][]ItemGrant),
		cardPacks:  make(map[string]CardPack),
	}

	if err := store.loadCatalog(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := store.loadBattlePasses(); err != nil {
		return nil, fmt.Errorf("load battle passes: %w", err)
	}
	if err := store.loadQuests(); err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	if err := store.loadCardPacks(); err != nil {
		return nil, fmt.Errorf("load card packs: %w", err)
	}
	return store, nil
}

func (s *Store) loadCatalog() error {
	raw, err := dataFS.ReadFile("data/catalog.json")
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(raw)
	if !doc.Get("storefronts").IsArray() {
		return fmt.Errorf("catalog has no storefronts array")
	}

	for _, storefront := range doc.Get("storefronts").Array() {
		name := storefront.Get("name").String()
		if name == "" {
			return fmt.Errorf("storefront without a name")
		}
		s.storefronts = append(s.storefronts, name)

		for _, entry := range storefront.Get("catalogEntries").Array() {
			offer := Offer{
				OfferID:    entry.Get("offerId").String(),
				DevName:    entry.Get("devName").String(),
				Storefront: name,
			}
			if offer.OfferID == "" {
				return fmt.Errorf("storefront %s has an entry without offerId", name)
			}
			for _, price := range entry.Get("prices").Array() {
				offer.Prices = append(offer.Prices, Price{
					CurrencyType:    price.Get("currencyType").String(),
					CurrencySubType: price.Get("currencySubType").String(),
					FinalPrice:      int(price.Get("finalPrice").Int()),
				})
			}
			for _, grant := range entry.Get("itemGrants").Array() {
				offer.ItemGrants = append(offer.ItemGrants, grantFromJSON(grant))
			}
			if _, exists := s.offers[offer.OfferID]; exists {
				return fmt.Errorf("duplicate offer id %s", offer.OfferID)
			}
			s.offers[offer.OfferID] = offer
		}
	}
	return nil
}

func (s *Store) loadBattlePasses() error {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "battlepass_") {
			continue
		}
		raw, err := dataFS.ReadFile("data/" + entry.Name())
		if err != nil {
			return err
		}
		doc := gjson.ParseBytes(raw)

		pass := BattlePass{
			Season:        int(doc.Get("seasonNumber").Int()),
			TierCount:     int(doc.Get("tierCount").Int()),
			PassOfferID:   doc.Get("offers.pass").String(),
			BundleOfferID: doc.Get("offers.bundle").String(),
			TierOfferID:   doc.Get("offers.tier").String(),
		}
		if pass.Season == 0 || pass.TierCount == 0 {
			return fmt.Errorf("battle pass %s missing season or tier count", entry.Name())
		}
		for _, tier := range doc.Get("tiers").Array() {
			rung := BattlePassTier{Tier: int(tier.Get("tier").Int())}
			for _, grant := range tier.Get("free").Array() {
				rung.Free = append(rung.Free, grantFromJSON(grant))
			}
			for _, grant := range tier.Get("paid").Array() {
				rung.Paid = append(rung.Paid, grantFromJSON(grant))
			}
			pass.Tiers = append(pass.Tiers, rung)
		}
		if len(pass.Tiers) != pass.TierCount {
			return fmt.Errorf("battle pass season %d declares %d tiers but defines %d",
				pass.Season, pass.TierCount, len(pass.Tiers))
		}
		s.battlePass[pass.Season] = pass
	}
	return nil
}

func (s *Store) loadQuests() error {
	raw, err := dataFS.ReadFile("data/quests.json")
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(raw)

	for _, quest := range doc.Get("daily").Array() {
		definition := QuestDefinition{
			TemplateID: quest.Get("templateId").String(),
			Objectives: make(map[string]int),
		}
		quest.Get("objectives").ForEach(func(key, value gjson.Result) bool {
			definition.Objectives[key.String()] = int(value.Int())
			return true
		})
		if definition.TemplateID == "" || len(definition.Objectives) == 0 {
			return fmt.Errorf("daily quest definition missing template or objectives")
		}
		s.dailyQuests = append(s.dailyQuests, definition)
	}

	var rewardsErr error
	doc.Get("rewards").ForEach(func(key, value gjson.Result) bool {
		var sets [][]ItemGrant
		for _, set := range value.Array() {
			var grants []ItemGrant
			for _, grant := range set.Array() {
				grants = append(grants, grantFromJSON(grant))
			}
			sets = append(sets, grants)
		}
		if len(sets) == 0 {
			rewardsErr = fmt.Errorf("reward table %s has no reward sets", key.String())
			return false
		}
		s.rewards[key.String()] = sets
		return true
	})
	return rewardsErr
}

func (s *Store) loadCardPacks() error {
	raw, err := dataFS.ReadFile("data/cardpacks.json")
	if err != nil {
		return err
	}
	doc := gjson.ParseBytes(raw)

	var packErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		pack := CardPack{
			TemplateID: key.String(),
			DrawCount:  int(value.Get("drawCount").Int()),
			ChoicePack: value.Get("choicePackTemplateId").String(),
		}
		for _, candidate := range value.Get("pool").Array() {
			weight := int(candidate.Get("weight").Int())
			if weight <= 0 {
				packErr = fmt.Errorf("card pack %s has a non-positive weight", pack.TemplateID)
				return false
			}
			pack.Pool = append(pack.Pool, WeightedGrant{
				TemplateID: candidate.Get("templateId").String(),
				Quantity:   quantityOrOne(candidate),
				Weight:     weight,
			})
		}
		if pack.DrawCount <= 0 || len(pack.Pool) == 0 {
			packErr = fmt.Errorf("card pack %s missing draw count or pool", pack.TemplateID)
			return false
		}
		s.cardPacks[pack.TemplateID] = pack
		return true
	})
	return packErr
}

func grantFromJSON(grant gjson.Result) ItemGrant {
	return ItemGrant{
		TemplateID: grant.Get("templateId").String(),
		Quantity:   quantityOrOne(grant),
	}
}

func quantityOrOne(node gjson.Result) int {
	if q := node.Get("quantity"); q.Exists() {
		return int(q.Int())
	}
	return 1
}

// FindOffer resolves an offer id across all storefronts.
func (s *Store) FindOffer(offerID string) (Offer, bool) {
	offer, ok := s.offers[offerID]
	return offer, ok
}

// Storefronts lists the loaded storefront names.
func (s *Store) Storefronts() []string {
	return s.storefronts
}

// BattlePass returns the reward ladder for a season.
func (s *Store) BattlePass(season int) (BattlePass, bool) {
	pass, ok := s.battlePass[season]
	return pass, ok
}

// DailyQuestPool returns the grantable daily quest definitions.
func (s *Store) DailyQuestPool() []QuestDefinition {
	return s.dailyQuests
}

// QuestRewards returns the reward sets for a quest template id. The first
// set is the default; further sets are player-selectable alternatives.
func (s *Store) QuestRewards(templateID string) ([][]ItemGrant, bool) {
	sets, ok := s.rewards[templateID]
	return sets, ok
}

// CardPack returns the pool definition for a card-pack template id.
func (s *Store) CardPack(templateID string) (CardPack, bool) {
	pack, ok := s.cardPacks[templateID]
	return pack, ok
}
