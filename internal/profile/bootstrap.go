package profile

import "time"

// Bootstrap builds the starter document for a namespace the account has
// never touched. IDs for seeded items come from newID so stores never see
// colliding keys.
func Bootstrap(accountID, profileID string, now time.Time, newID func() (string, error)) (*Profile, error) {
	p := New(accountID, profileID)
	p.Rvn = 1
	p.CommandRevision = 1
	p.Updated = now.UTC()

	seed := func(templateID string, attributes map[string]any, quantity int) error {
		itemID, err := newID()
		if err != nil {
			return err
		}
		p.Items[itemID] = NewItem(templateID, attributes, quantity)
		return nil
	}

	switch profileID {
	case NamespaceCommonCore:
		p.SetAttribute("current_mtx_platform", "EpicPC")
		p.SetAttribute("mtx_affiliate", "")
		if err := seed("Currency:MtxPurchased", map[string]any{"platform": "shared"}, 0); err != nil {
			return nil, err
		}

	case NamespaceAthena:
		p.SetAttribute("book_purchased", false)
		p.SetAttribute("book_level", 1)
		p.SetAttribute("level", 1)
		p.SetAttribute("season_match_boost", 0)
		p.SetAttribute("season_friend_match_boost", 0)
		starters := []string{
			"AthenaCharacter:cid_001_athena_commando_f_default",
			"AthenaPickaxe:defaultpickaxe",
			"AthenaGlider:defaultglider",
			"AthenaDance:eid_dancemoves",
		}
		for _, templateID := range starters {
			if err := seed(templateID, nil, 1); err != nil {
				return nil, err
			}
		}

	case NamespaceCampaign:
		p.SetAttribute("level", 1)
		p.SetAttribute("mfa_reward_claimed", false)
	}

	return p, nil
}
