package interaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// pairRule is one entry of the built-in interaction knowledge base. It fires
// when one item matches sideA and the other matches sideB.
type pairRule struct {
	sideA          []string
	sideB          []string
	severity       model.Severity
	summary        string
	mechanism      string
	recommendation string
	evidence       []string
}

var (
	anticoagulants = []string{"warfarin", "coumadin", "jantoven", "apixaban", "eliquis", "rivaroxaban", "xarelto", "dabigatran", "pradaxa", "clopidogrel", "plavix"}
	serotonergic   = []string{"sertraline", "zoloft", "fluoxetine", "prozac", "citalopram", "celexa", "escitalopram", "lexapro", "paroxetine", "paxil", "venlafaxine", "effexor", "duloxetine", "cymbalta", "tramadol"}
	stJohnsWort    = []string{"st. john", "st john", "hypericum"}
	thyroidHormone = []string{"levothyroxine", "synthroid", "levoxyl", "euthyrox", "liothyronine"}
	chelatingAbx   = []string{"tetracycline", "doxycycline", "minocycline", "ciprofloxacin", "cipro", "levofloxacin", "moxifloxacin"}
	potassiumRaise = []string{"lisinopril", "enalapril", "ramipril", "benazepril", "losartan", "valsartan", "spironolactone"}
	nsaids         = []string{"aspirin", "ibuprofen", "advil", "motrin", "naproxen", "aleve"}
	bleedingHerbs  = []string{"fish oil", "omega-3", "omega 3", "krill oil", "vitamin e", "ginkgo", "garlic", "turmeric", "curcumin"}
	divalent       = []string{"calcium", "magnesium", "iron", "zinc"}
)

var pairRules = []pairRule{
	{
		sideA:          []string{"iron"},
		sideB:          []string{"calcium"},
		severity:       model.SeverityModerate,
		summary:        "calcium reduces iron absorption when taken together",
		mechanism:      "Calcium competes with non-heme iron for intestinal uptake",
		recommendation: "Take iron and calcium at least 2 hours apart",
		evidence:       []string{"clinical studies"},
	},
	{
		sideA:          []string{"iron"},
		sideB:          []string{"zinc"},
		severity:       model.SeverityLow,
		summary:        "iron and zinc compete for absorption at supplemental doses",
		mechanism:      "Shared divalent metal transporter (DMT1)",
		recommendation: "Separate doses or take with food",
		evidence:       []string{"clinical studies"},
	},
	{
		sideA:          []string{"zinc"},
		sideB:          []string{"copper"},
		severity:       model.SeverityLow,
		summary:        "high-dose zinc can deplete copper over time",
		mechanism:      "Zinc induces metallothionein, which binds copper in the gut",
		recommendation: "Keep the zinc to copper ratio near 10:1",
		evidence:       []string{"case reports"},
	},
	{
		sideA:          []string{"calcium"},
		sideB:          []string{"magnesium"},
		severity:       model.SeverityLow,
		summary:        "calcium and magnesium compete for absorption at high doses",
		mechanism:      "Competition for shared intestinal transport",
		recommendation: "Split doses across the day",
		evidence:       []string{"limited evidence"},
	},
	{
		sideA:          anticoagulants,
		sideB:          bleedingHerbs,
		severity:       model.SeverityHigh,
		summary:        "combined antiplatelet effects raise bleeding risk",
		mechanism:      "Additive inhibition of platelet aggregation",
		recommendation: "Talk to your prescriber before combining; monitor for bruising or bleeding",
		evidence:       []string{"clinical studies", "drug label"},
	},
	{
		sideA:          anticoagulants,
		sideB:          []string{"vitamin k"},
		severity:       model.SeverityHigh,
		summary:        "vitamin K counteracts warfarin's anticoagulant effect",
		mechanism:      "Vitamin K is the cofactor warfarin antagonizes",
		recommendation: "Keep vitamin K intake consistent and tell your prescriber",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          anticoagulants,
		sideB:          nsaids,
		severity:       model.SeverityHigh,
		summary:        "NSAIDs with anticoagulants sharply increase bleeding risk",
		mechanism:      "Platelet inhibition plus gastric mucosal injury",
		recommendation: "Avoid unless directed by your prescriber",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          serotonergic,
		sideB:          append(append([]string{}, stJohnsWort...), "5-htp", "sam-e", "tryptophan"),
		severity:       model.SeverityCritical,
		summary:        "the combination can cause serotonin syndrome",
		mechanism:      "Additive serotonergic activity",
		recommendation: "Do not combine; contact your prescriber",
		evidence:       []string{"case reports", "drug label"},
	},
	{
		sideA:          stJohnsWort,
		sideB:          []string{"birth control", "contraceptive", "ethinyl estradiol", "norethindrone", "cyclosporine", "digoxin"},
		severity:       model.SeverityHigh,
		summary:        "St. John's wort lowers blood levels of the medication",
		mechanism:      "Induction of CYP3A4 and P-glycoprotein",
		recommendation: "Avoid the combination or use backup contraception",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          thyroidHormone,
		sideB:          append(append([]string{}, divalent...), "soy"),
		severity:       model.SeverityModerate,
		summary:        "the supplement reduces thyroid hormone absorption",
		mechanism:      "Binding of levothyroxine in the gut",
		recommendation: "Take thyroid medication 4 hours apart from minerals",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          chelatingAbx,
		sideB:          divalent,
		severity:       model.SeverityModerate,
		summary:        "minerals bind the antibiotic and reduce its effect",
		mechanism:      "Chelation of the antibiotic by divalent cations",
		recommendation: "Take the antibiotic 2 hours before or 6 hours after minerals",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          potassiumRaise,
		sideB:          []string{"potassium"},
		severity:       model.SeverityHigh,
		summary:        "the combination can raise blood potassium to dangerous levels",
		mechanism:      "Reduced renal potassium excretion plus added intake",
		recommendation: "Avoid potassium supplements unless your prescriber monitors levels",
		evidence:       []string{"drug label"},
	},
	{
		sideA:          []string{"metformin"},
		sideB:          []string{"b12", "cobalamin"},
		severity:       model.SeverityLow,
		summary:        "long-term metformin use lowers vitamin B12 levels",
		mechanism:      "Metformin impairs B12 absorption in the ileum",
		recommendation: "Supplementing B12 is reasonable; check levels yearly",
		evidence:       []string{"clinical studies"},
	},
	{
		sideA:          []string{"melatonin", "valerian", "kava"},
		sideB:          []string{"zolpidem", "ambien", "lorazepam", "alprazolam", "xanax", "diazepam", "clonazepam"},
		severity:       model.SeverityModerate,
		summary:        "additive sedation",
		mechanism:      "Combined central nervous system depression",
		recommendation: "Avoid combining without medical advice",
		evidence:       []string{"limited evidence"},
	},
}

// RuleChecker answers pairwise checks from the built-in knowledge base. It
// performs no I/O. Nutrient upper limits are checked stack-wide by the Engine.
type RuleChecker struct{}

// NewRuleChecker creates a rule checker
func NewRuleChecker() *RuleChecker {
	return &RuleChecker{}
}

// Check evaluates one pair
func (c *RuleChecker) Check(ctx context.Context, a, b model.StackItem, _ string) (*CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	termsA, termsB := itemTerms(a), itemTerms(b)
	result := &CheckResult{}

	for _, rule := range pairRules {
		forward := matches(termsA, rule.sideA) && matches(termsB, rule.sideB)
		reverse := matches(termsA, rule.sideB) && matches(termsB, rule.sideA)
		if !forward && !reverse {
			continue
		}
		result.Interactions = append(result.Interactions, model.InteractionFinding{
			Type:           model.InteractionTypeFor(a.Kind, b.Kind),
			Severity:       rule.severity,
			ItemA:          a.Name,
			ItemB:          b.Name,
			Message:        fmt.Sprintf("%s and %s: %s", a.Name, b.Name, rule.summary),
			Mechanism:      rule.mechanism,
			Recommendation: rule.recommendation,
			Evidence:       rule.evidence,
		})
	}

	return result, nil
}

// itemTerms lists the normalized strings an item can be matched on: its
// name and every ingredient name.
func itemTerms(item model.StackItem) []string {
	terms := []string{model.NormalizeName(item.Name)}
	for _, ing := range item.Ingredients {
		terms = append(terms, model.NormalizeName(ing.Name))
	}
	return terms
}

func matches(terms, keywords []string) bool {
	for _, term := range terms {
		for _, k := range keywords {
			if strings.Contains(term, k) {
				return true
			}
		}
	}
	return false
}
