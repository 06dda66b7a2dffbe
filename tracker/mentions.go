package tracker

import (
	"sort"
)

// Mentions records which tokens were seen per report group during one cycle.
// It is not safe for concurrent use: every wallet sync fills its own instance and the cycle merges them.
type Mentions struct {
	assets map[string][]Asset
}

func NewMentions() *Mentions {
	return &Mentions{assets: make(map[string][]Asset)}
}

// Add records asset for group. Native currency and already recorded assets are ignored.
func (m *Mentions) Add(group string, asset Asset) {
	if asset.Native {
		return
	}
	for _, a := range m.assets[group] {
		if a.Same(asset) {
			return
		}
	}
	m.assets[group] = append(m.assets[group], asset)
}

func (m *Mentions) Merge(other *Mentions) {
	if other == nil {
		return
	}
	for _, group := range other.Groups() {
		for _, a := range other.assets[group] {
			m.Add(group, a)
		}
	}
}

// Groups returns groups with at least one mention, sorted.
func (m *Mentions) Groups() []string {
	groups := make([]string, 0, len(m.assets))
	for g := range m.assets {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Assets returns the group's assets in the order they were first seen.
func (m *Mentions) Assets(group string) []Asset {
	return m.assets[group]
}

// All returns distinct assets over every group.
func (m *Mentions) All() []Asset {
	var all []Asset
	for _, g := range m.Groups() {
	next:
		for _, a := range m.assets[g] {
			for _, seen := range all {
				if seen.Same(a) {
					continue next
				}
			}
			all = append(all, a)
		}
	}
	return all
}

func (m *Mentions) Empty() bool {
	return len(m.assets) == 0
}
