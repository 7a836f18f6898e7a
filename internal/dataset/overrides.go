package dataset

import (
	"fmt"

	"career-pulse/internal/schema"
)

// RuleKind selects how a Rule rewrites a drawn vector.
type RuleKind int

const (
	// RuleRange redraws a field uniformly from [Lo, Hi].
	RuleRange RuleKind = iota
	// RuleFlag forces a preference to 1.
	RuleFlag
	// RuleOneOf picks one field from Fields and redraws it from [Lo, Hi].
	RuleOneOf
)

// Rule is one label-specific bias applied on top of the base draw.
type Rule struct {
	Kind   RuleKind
	Field  string
	Fields []string
	Lo, Hi int
}

func between(field string, lo, hi int) Rule {
	return Rule{Kind: RuleRange, Field: field, Lo: lo, Hi: hi}
}

func exactly(field string, v int) Rule {
	return between(field, v, v)
}

func forced(field string) Rule {
	return Rule{Kind: RuleFlag, Field: field, Lo: 1, Hi: 1}
}

func anyOf(lo, hi int, fields ...string) Rule {
	return Rule{Kind: RuleOneOf, Fields: fields, Lo: lo, Hi: hi}
}

// Feature name shorthands used by the table.
const (
	algebra       = "Maths - Algebra"
	calculus      = "Maths - Calculus"
	biology       = "Science - Biology"
	chemistry     = "Science - Chemistry"
	physics       = "Science - Physics"
	programming   = "Computer Science - Programming"
	dataStructs   = "Computer Science - Data Structures"
	ancient       = "History - Ancient"
	microecon     = "Economics - Microeconomics"
	painting      = "Art - Painting"
	sculpture     = "Art - Sculpture"
	logical       = "Problem Solving - Logical"
	visual        = "Creativity - Visual"
	innovation    = "Creativity - Innovation"
	written       = "Communication - Written"
	verbal        = "Communication - Verbal"
	teamMgmt      = "Leadership - Team Management"
	initiative    = "Leadership - Initiative"
	ai            = "Technology - Artificial Intelligence"
	cyber         = "Technology - Cybersecurity"
	webDev        = "Technology - Web Development"
	marketing     = "Business - Marketing"
	finance       = "Business - Finance"
	management    = "Business - Management"
	clinical      = "Healthcare - Clinical Research"
	patientCare   = "Healthcare - Patient Care"
	primarySec    = "Education - Primary/Secondary"
	higherEd      = "Education - Higher Education"
	mechanical    = "Engineering - Mechanical"
	electrical    = "Engineering - Electrical"
	creativeWrite = "Writing - Creative Writing"
	techWrite     = "Writing - Technical Writing"

	complexProblems = "Enjoy solving complex problems?"
	machines        = "Prefer working with machines?"
	research        = "Interested in research?"
	people          = "Enjoy working with people?"
)

// Overrides maps each career to the rules that bias its synthetic rows.
// Ranges are inclusive.
var Overrides = map[string][]Rule{
	"Software Engineer": {
		between(programming, 4, 5), between(dataStructs, 3, 5), between(ai, 4, 5), between(cyber, 3, 5),
		forced(complexProblems), forced(machines), between(algebra, 3, 4),
	},
	"Data Scientist": {
		between(algebra, 4, 5), between(programming, 4, 5), between(ai, 4, 5),
		forced(complexProblems), forced(research),
	},
	"Web Developer": {
		between(programming, 4, 5), between(ai, 4, 5), between(webDev, 3, 4), forced(machines),
	},
	"Graphic Designer": {
		between(painting, 4, 5), between(sculpture, 3, 5), between(visual, 4, 5),
	},
	"UX/UI Designer": {
		between(programming, 3, 4), between(visual, 4, 5), between(innovation, 3, 4), between(webDev, 3, 4),
	},
	"Marketing Manager": {
		between(written, 4, 5), between(verbal, 4, 5), between(innovation, 3, 5),
		between(marketing, 3, 4), between(management, 2, 3),
	},
	"Financial Analyst": {
		between(algebra, 4, 5), between(finance, 4, 5), forced(research), exactly(logical, 1),
	},
	"Product Manager": {
		between(programming, 3, 4), between(verbal, 3, 4), between(teamMgmt, 3, 4),
		between(management, 3, 4), between(ai, 3, 4),
	},
	"Business Analyst": {
		between(algebra, 3, 4), between(verbal, 3, 4), between(management, 3, 4), exactly(logical, 1),
	},
	"Human Resources Manager": {
		between(verbal, 4, 5), between(teamMgmt, 4, 5), between(initiative, 3, 4),
		forced(people), between(management, 3, 4),
	},
	"Teacher (Primary)": {
		between(verbal, 4, 5), between(primarySec, 4, 5), forced(people),
		between(visual, 3, 4), between(ancient, 3, 4),
	},
	"Teacher (Secondary)": {
		between(verbal, 4, 5), between(primarySec, 4, 5), forced(people),
		between(ancient, 3, 4), between(programming, 3, 4),
	},
	"Professor": {
		between(verbal, 4, 5), between(higherEd, 4, 5), forced(research),
		anyOf(4, 5, algebra, calculus, biology, chemistry, physics, programming, dataStructs),
	},
	"Doctor (General)": {
		between(biology, 4, 5), between(clinical, 4, 5), between(verbal, 3, 4),
		forced(people), exactly(logical, 1),
	},
	"Doctor (Specialist)": {
		between(biology, 4, 5), between(clinical, 4, 5), between(verbal, 3, 4),
		forced(people), forced(research),
	},
	"Nurse": {
		between(biology, 3, 4), between(patientCare, 4, 5), between(verbal, 4, 5),
		forced(people), between(teamMgmt, 2, 3),
	},
	"Pharmacist": {
		between(chemistry, 3, 4), between(patientCare, 4, 5), between(algebra, 3, 4),
	},
	"Lawyer": {
		between(ancient, 4, 5), between(written, 4, 5), between(verbal, 4, 5), exactly(logical, 1),
	},
	"Journalist": {
		between(ancient, 3, 4), between(written, 4, 5), between(verbal, 4, 5), between(creativeWrite, 4, 5),
	},
	"Technical Writer": {
		between(programming, 3, 4), between(written, 4, 5), between(techWrite, 4, 5),
	},
	"Architect": {
		between(algebra, 3, 4), between(painting, 3, 4), between(mechanical, 3, 4), between(visual, 3, 4),
	},
	"Civil Engineer": {
		between(calculus, 4, 5), between(physics, 3, 4), between(mechanical, 4, 5), exactly(logical, 1),
	},
	"Mechanical Engineer": {
		between(calculus, 4, 5), between(physics, 4, 5), between(mechanical, 4, 5),
		forced(machines), exactly(logical, 1),
	},
	"Electrical Engineer": {
		between(calculus, 4, 5), between(physics, 4, 5), between(programming, 2, 3),
		between(electrical, 4, 5), forced(machines), exactly(logical, 1),
	},
	"Environmental Scientist": {
		between(biology, 4, 5), between(mechanical, 4, 5), forced(research),
	},
	"Data Analyst": {
		between(algebra, 4, 5), between(programming, 3, 4), exactly(logical, 1),
	},
	"Management Consultant": {
		between(microecon, 3, 4), between(verbal, 3, 4), between(management, 3, 4),
	},
}

// rule is a Rule resolved to schema positions.
type rule struct {
	kind    RuleKind
	indices []int
	lo, hi  int
}

// compiled holds Overrides indexed by label.
var compiled [][]rule

func init() {
	c, err := compileOverrides(Overrides)
	if err != nil {
		panic("dataset: " + err.Error())
	}
	compiled = c
}

// compileOverrides checks every rule against the schema and resolves field
// names to vector positions.
func compileOverrides(table map[string][]Rule) ([][]rule, error) {
	out := make([][]rule, schema.NumCareers)
	for career, rules := range table {
		label, err := schema.CareerIndex(career)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			cr, err := compileRule(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", career, err)
			}
			out[label] = append(out[label], cr)
		}
	}
	return out, nil
}

func compileRule(r Rule) (rule, error) {
	names := r.Fields
	if r.Kind != RuleOneOf {
		names = []string{r.Field}
	}
	if len(names) == 0 {
		return rule{}, fmt.Errorf("rule has no fields")
	}

	cr := rule{kind: r.Kind, lo: r.Lo, hi: r.Hi}
	for _, name := range names {
		f, ok := schema.Lookup(name)
		if !ok {
			return rule{}, fmt.Errorf("%w: %q", schema.ErrUnknownFeature, name)
		}
		switch {
		case r.Kind == RuleFlag && !f.Binary():
			return rule{}, fmt.Errorf("flag rule on non-binary feature %q", name)
		case r.Kind != RuleFlag && f.Binary():
			return rule{}, fmt.Errorf("range rule on binary feature %q", name)
		case float64(r.Lo) < f.Min() || float64(r.Hi) > f.Max() || r.Lo > r.Hi:
			return rule{}, fmt.Errorf("range [%d, %d] invalid for %q", r.Lo, r.Hi, name)
		}
		cr.indices = append(cr.indices, schema.MustIndex(name))
	}
	return cr, nil
}

// RulesFor returns the override rules of a label.
func RulesFor(label int) []Rule {
	if label < 0 || label >= schema.NumCareers {
		return nil
	}
	return Overrides[schema.Careers[label]]
}
