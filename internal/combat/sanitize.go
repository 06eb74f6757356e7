package combat

import "strings"

const defaultMultiHitKey = "mh"

// SanitizeForPlay prepares a selected card for reporting as played. Multi-Hit
// abilities always repeat the base attack and link to nothing; every other
// ability may only link to the card's primary Multi-Hit key.
func SanitizeForPlay(card CardInstance) CardInstance {
	out := card.Clone()

	mhKey := ""
	for _, a := range out.Abilities {
		if a.Type == abilityMultiHit && a.MultiHit != nil && a.MultiHit.Turns > 0 {
			mhKey = strings.TrimSpace(a.Key)
			if mhKey == "" {
				mhKey = defaultMultiHitKey
			}
			break
		}
	}

	for i := range out.Abilities {
		a := &out.Abilities[i]
		if a.Type == abilityMultiHit {
			a.Key = strings.TrimSpace(a.Key)
			if a.Key == "" {
				a.Key = mhKey
			}
			if a.Key == "" {
				a.Key = defaultMultiHitKey
			}
			if a.MultiHit == nil {
				a.MultiHit = &MultiHit{}
			}
			a.MultiHit.Link = "attack"
			a.LinkedTo = StringList{}
			continue
		}
		links := StringList{}
		if mhKey != "" && a.LinkedTo.Contains(mhKey) {
			links = append(links, mhKey)
		}
		a.LinkedTo = links
	}
	return out
}
