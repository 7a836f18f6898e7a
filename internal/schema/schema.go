// Package schema defines the single feature and label contract shared by the
// dataset generator, the trainer, the persisted artifact and every predictor.
//
// Any change to field order, field count or career order must bump Version;
// artifacts carry the version and the name lists they were trained with and
// are rejected on mismatch.
package schema

import (
	"errors"
	"fmt"
)

// Version identifies the layout of FeatureNames and Careers.
const Version = 1

// Group classifies a feature by how it is collected and scaled.
type Group int

const (
	GroupAge Group = iota
	GroupSubject
	GroupSkill
	GroupFieldInterest
	GroupPreference
)

func (g Group) String() string {
	switch g {
	case GroupAge:
		return "age"
	case GroupSubject:
		return "subject"
	case GroupSkill:
		return "skill"
	case GroupFieldInterest:
		return "field_interest"
	case GroupPreference:
		return "preference"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Value ranges, inclusive.
const (
	RatingMin = 0
	RatingMax = 5

	// Age bounds accepted at inference time.
	AgeMin = 10
	AgeMax = 55

	// Age bounds used when generating synthetic rows.
	GenAgeMin = 18
	GenAgeMax = 45
)

// Feature is one named position in a Vector.
type Feature struct {
	Name  string
	Group Group
}

// Min returns the smallest valid value for the feature.
func (f Feature) Min() float64 {
	if f.Group == GroupAge {
		return AgeMin
	}
	return RatingMin
}

// Max returns the largest valid value for the feature.
func (f Feature) Max() float64 {
	switch f.Group {
	case GroupAge:
		return AgeMax
	case GroupPreference:
		return 1
	default:
		return RatingMax
	}
}

// Binary reports whether the feature only takes the values 0 and 1.
func (f Feature) Binary() bool {
	return f.Group == GroupPreference
}

// Age is the only feature without a rating scale.
const Age = "Age"

// Features lists every input in model order.
var Features = []Feature{
	{Age, GroupAge},

	{"Maths - Algebra", GroupSubject},
	{"Maths - Calculus", GroupSubject},
	{"Science - Biology", GroupSubject},
	{"Science - Chemistry", GroupSubject},
	{"Science - Physics", GroupSubject},
	{"Computer Science - Programming", GroupSubject},
	{"Computer Science - Data Structures", GroupSubject},
	{"History - Ancient", GroupSubject},
	{"History - Modern", GroupSubject},
	{"Economics - Microeconomics", GroupSubject},
	{"Economics - Macroeconomics", GroupSubject},
	{"Literature - Fiction", GroupSubject},
	{"Literature - Poetry", GroupSubject},
	{"Art - Painting", GroupSubject},
	{"Art - Sculpture", GroupSubject},

	{"Problem Solving - Logical", GroupSkill},
	{"Problem Solving - Creative", GroupSkill},
	{"Creativity - Visual", GroupSkill},
	{"Creativity - Innovation", GroupSkill},
	{"Communication - Written", GroupSkill},
	{"Communication - Verbal", GroupSkill},
	{"Leadership - Team Management", GroupSkill},
	{"Leadership - Initiative", GroupSkill},

	{"Technology - Artificial Intelligence", GroupFieldInterest},
	{"Technology - Cybersecurity", GroupFieldInterest},
	{"Technology - Web Development", GroupFieldInterest},
	{"Business - Marketing", GroupFieldInterest},
	{"Business - Finance", GroupFieldInterest},
	{"Business - Management", GroupFieldInterest},
	{"Art And Design - Visual Arts", GroupFieldInterest},
	{"Art And Design - Industrial Design", GroupFieldInterest},
	{"Healthcare - Clinical Research", GroupFieldInterest},
	{"Healthcare - Patient Care", GroupFieldInterest},
	{"Education - Primary/Secondary", GroupFieldInterest},
	{"Education - Higher Education", GroupFieldInterest},
	{"Engineering - Mechanical", GroupFieldInterest},
	{"Engineering - Electrical", GroupFieldInterest},
	{"Writing - Creative Writing", GroupFieldInterest},
	{"Writing - Technical Writing", GroupFieldInterest},

	{"Enjoy solving complex problems?", GroupPreference},
	{"Prefer working with machines?", GroupPreference},
	{"Interested in research?", GroupPreference},
	{"Enjoy working with people?", GroupPreference},
	{"Prefer working indoors?", GroupPreference},
}

// Careers lists the labels; a label index is a position in this slice.
var Careers = []string{
	"Software Engineer", "Data Scientist", "Web Developer", "Graphic Designer",
	"UX/UI Designer", "Marketing Manager", "Financial Analyst", "Product Manager",
	"Business Analyst", "Human Resources Manager", "Teacher (Primary)", "Teacher (Secondary)",
	"Professor", "Doctor (General)", "Doctor (Specialist)", "Nurse",
	"Pharmacist", "Lawyer", "Journalist", "Technical Writer",
	"Architect", "Civil Engineer", "Mechanical Engineer", "Electrical Engineer",
	"Environmental Scientist", "Data Analyst", "Management Consultant",
}

var (
	// NumFeatures is the exact length of every Vector.
	NumFeatures = len(Features)
	// NumCareers is the number of labels a model predicts over.
	NumCareers = len(Careers)

	featureIndex = make(map[string]int, len(Features))
	careerIndex  = make(map[string]int, len(Careers))
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrUnknownCareer  = errors.New("unknown career")
	ErrInvalidVector  = errors.New("invalid feature vector")
)

func init() {
	for i, f := range Features {
		if _, dup := featureIndex[f.Name]; dup {
			panic("schema: duplicate feature " + f.Name)
		}
		featureIndex[f.Name] = i
	}
	for i, c := range Careers {
		if _, dup := careerIndex[c]; dup {
			panic("schema: duplicate career " + c)
		}
		careerIndex[c] = i
	}
}

// FeatureNames returns the feature names in model order.
func FeatureNames() []string {
	names := make([]string, len(Features))
	for i, f := range Features {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named feature.
func Index(name string) (int, bool) {
	i, ok := featureIndex[name]
	return i, ok
}

// MustIndex is Index for names known at compile time.
func MustIndex(name string) int {
	i, ok := featureIndex[name]
	if !ok {
		panic(fmt.Sprintf("schema: %s: %q", ErrUnknownFeature, name))
	}
	return i
}

// Lookup returns the named feature.
func Lookup(name string) (Feature, bool) {
	i, ok := featureIndex[name]
	if !ok {
		return Feature{}, false
	}
	return Features[i], true
}

// CareerIndex returns the label index of a career name.
func CareerIndex(name string) (int, error) {
	i, ok := careerIndex[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCareer, name)
	}
	return i, nil
}

// CareerName returns the career name for a label index.
func CareerName(index int) (string, error) {
	if index < 0 || index >= len(Careers) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownCareer, index)
	}
	return Careers[index], nil
}
