package indicator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// KEYWORD MATCHING
// =============================================================================

// Fold normalises s for case-insensitive comparison.
// A cases.Caser is stateful, so a fresh one is used per call.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Matches reports whether name contains keyword, ignoring case.
// An empty keyword matches every name.
func Matches(name, keyword string) bool {
	return containsFolded(Fold(name), Fold(keyword))
}

func containsFolded(folded, keyword string) bool {
	return strings.Contains(folded, keyword)
}

// =============================================================================
// CATEGORY - Keyword buckets tagged at load time
// =============================================================================

// Category is a bit set of the keyword buckets an indicator name falls into.
type Category uint16

const (
	CategoryAccount Category = 1 << iota
	CategoryDigital
	CategoryMobile
	CategoryP2P
	CategoryATM
	CategoryBank
	CategoryAgent
)

// ChannelCategories are the buckets plotted in the channel comparison view.
const ChannelCategories = CategoryMobile | CategoryBank | CategoryAgent

var categoryKeywords = []struct {
	cat     Category
	keyword string
}{
	{CategoryAccount, "account"},
	{CategoryDigital, "digital"},
	{CategoryMobile, "mobile"},
	{CategoryP2P, "p2p"},
	{CategoryATM, "atm"},
	{CategoryBank, "bank"},
	{CategoryAgent, "agent"},
}

// categorize tags a folded indicator name with every bucket whose keyword it
// contains. It uses the same substring rule as Matches so tagged lookups and
// ad-hoc keyword lookups always agree.
func categorize(folded string) Category {
	var c Category
	for _, ck := range categoryKeywords {
		if strings.Contains(folded, ck.keyword) {
			c |= ck.cat
		}
	}
	return c
}

// CategoryFor returns the bucket whose keyword is exactly keyword.
func CategoryFor(keyword string) (Category, bool) {
	k := Fold(keyword)
	for _, ck := range categoryKeywords {
		if ck.keyword == k {
			return ck.cat, true
		}
	}
	return 0, false
}

// Has reports whether any bit of other is set in c.
func (c Category) Has(other Category) bool { return c&other != 0 }

// Names lists the bucket keywords set in c.
func (c Category) Names() []string {
	var names []string
	for _, ck := range categoryKeywords {
		if c.Has(ck.cat) {
			names = append(names, ck.keyword)
		}
	}
	return names
}

func (c Category) String() string {
	return strings.Join(c.Names(), "|")
}
