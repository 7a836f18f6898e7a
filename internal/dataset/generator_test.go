package dataset

import (
	"bytes"
	"encoding/csv"
	"math/rand"
	"strings"
	"testing"

	"career-pulse/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_SizeAndBalance(t *testing.T) {
	ds := NewGenerator(42, SamplesPerCareer).Generate()

	require.Equal(t, schema.NumCareers*SamplesPerCareer, ds.Len())
	require.Len(t, ds.X, 4050)

	for label, n := range ds.CountByLabel() {
		assert.Equal(t, SamplesPerCareer, n, "label %d", label)
	}
}

func TestGenerate_RowsRespectSchema(t *testing.T) {
	ds := NewGenerator(7, 40).Generate()
	require.NoError(t, ds.Validate())

	for i, x := range ds.X {
		require.Len(t, x, schema.NumFeatures, "row %d", i)
		for j, v := range x {
			f := schema.Features[j]
			switch f.Group {
			case schema.GroupAge:
				assert.True(t, v >= schema.GenAgeMin && v <= schema.GenAgeMax, "row %d age %v", i, v)
			case schema.GroupPreference:
				assert.True(t, v == 0 || v == 1, "row %d %s = %v", i, f.Name, v)
			default:
				assert.True(t, v >= 0 && v <= 5, "row %d %s = %v", i, f.Name, v)
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := NewGenerator(42, 20).Generate()
	b := NewGenerator(42, 20).Generate()
	c := NewGenerator(43, 20).Generate()

	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Y, b.Y)
	assert.NotEqual(t, a.X, c.X)
}

func TestGenerate_DefaultSamples(t *testing.T) {
	g := NewGenerator(1, 0)
	assert.Equal(t, SamplesPerCareer, g.Samples())
}

func TestGenerate_OverridesRaiseFieldMeans(t *testing.T) {
	ds := NewGenerator(42, SamplesPerCareer).Generate()

	for label, career := range schema.Careers {
		for _, r := range RulesFor(label) {
			if r.Kind != RuleRange || r.Lo < 3 {
				continue
			}
			idx := schema.MustIndex(r.Field)

			var inSum, outSum float64
			var inN, outN int
			for i, x := range ds.X {
				if ds.Y[i] == label {
					inSum += x[idx]
					inN++
				} else {
					outSum += x[idx]
					outN++
				}
			}
			in, out := inSum/float64(inN), outSum/float64(outN)
			assert.Greater(t, in, out, "%s: %s mean %.2f vs %.2f", career, r.Field, in, out)
		}
	}
}

func TestGenerate_OverridesStayInRange(t *testing.T) {
	ds := NewGenerator(3, 60).Generate()

	for i, x := range ds.X {
		label := ds.Y[i]
		for _, r := range RulesFor(label) {
			switch r.Kind {
			case RuleFlag:
				assert.Equal(t, 1.0, x[schema.MustIndex(r.Field)], "%s row %d", r.Field, i)
			case RuleRange:
				v := x[schema.MustIndex(r.Field)]
				assert.True(t, v >= float64(r.Lo) && v <= float64(r.Hi), "%s row %d = %v", r.Field, i, v)
			case RuleOneOf:
				hit := false
				for _, name := range r.Fields {
					if v := x[schema.MustIndex(name)]; v >= float64(r.Lo) && v <= float64(r.Hi) {
						hit = true
					}
				}
				assert.True(t, hit, "row %d has no field in %v raised", i, r.Fields)
			}
		}
	}
}

func TestGenerate_LogicalPinnedToOne(t *testing.T) {
	pinned := []string{
		"Financial Analyst", "Business Analyst", "Doctor (General)", "Lawyer",
		"Civil Engineer", "Mechanical Engineer", "Electrical Engineer", "Data Analyst",
	}
	gen := NewGenerator(9, 1)
	logicalIdx := schema.MustIndex(logical)

	for _, career := range pinned {
		label, err := schema.CareerIndex(career)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			assert.Equal(t, 1.0, gen.Row(label).Features[logicalIdx], "%s row %d", career, i)
		}
	}

	// Careers without the rule keep the full 0-5 draw
	free, err := schema.CareerIndex("Nurse")
	require.NoError(t, err)
	seen := map[float64]bool{}
	for i := 0; i < 200; i++ {
		seen[gen.Row(free).Features[logicalIdx]] = true
	}
	assert.Greater(t, len(seen), 2)
}

func TestOverrides_CoverEveryCareer(t *testing.T) {
	assert.Len(t, Overrides, schema.NumCareers)
	for label := range schema.Careers {
		assert.NotEmpty(t, RulesFor(label))
	}
	assert.Nil(t, RulesFor(-1))
	assert.Nil(t, RulesFor(schema.NumCareers))
}

func TestCompileOverrides_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		table map[string][]Rule
	}{
		{"unknown career", map[string][]Rule{"Astronaut": {between(algebra, 4, 5)}}},
		{"unknown field", map[string][]Rule{"Lawyer": {between("Research - Literature Review", 3, 4)}}},
		{"flag on rating", map[string][]Rule{"Lawyer": {forced(logical)}}},
		{"range on flag", map[string][]Rule{"Lawyer": {between(people, 0, 1)}}},
		{"range too high", map[string][]Rule{"Lawyer": {between(verbal, 4, 6)}}},
		{"inverted range", map[string][]Rule{"Lawyer": {between(verbal, 5, 4)}}},
		{"empty one of", map[string][]Rule{"Professor": {anyOf(4, 5)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOverrides(tt.table)
			assert.Error(t, err)
		})
	}
}

func TestSplit(t *testing.T) {
	ds := NewGenerator(42, 10).Generate()
	train, holdout := ds.Split(0.2, rand.New(rand.NewSource(1)))

	assert.Equal(t, ds.Len(), train.Len()+holdout.Len())
	assert.Equal(t, int(float64(ds.Len())*0.2), holdout.Len())

	_, none := ds.Split(0, rand.New(rand.NewSource(1)))
	assert.Zero(t, none.Len())
}

func TestRowsRoundTrip(t *testing.T) {
	ds := NewGenerator(5, 3).Generate()
	back := FromRows(ds.Rows())

	assert.Equal(t, ds.X, back.X)
	assert.Equal(t, ds.Y, back.Y)
}

func TestWriteCSV(t *testing.T) {
	ds := NewGenerator(42, 2).Generate()

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, ds.Len()+1)

	header := records[0]
	assert.Equal(t, schema.NumFeatures+1, len(header))
	assert.Equal(t, schema.Age, header[0])
	assert.Equal(t, "career", header[len(header)-1])
	assert.Equal(t, "Software Engineer", records[1][len(header)-1])
	assert.Equal(t, "Management Consultant", records[len(records)-1][len(header)-1])
}

func TestWriteCSV_RejectsShortRow(t *testing.T) {
	ds := &Dataset{X: [][]float64{{25}}, Y: []int{0}}
	var buf bytes.Buffer
	assert.ErrorIs(t, ds.WriteCSV(&buf), schema.ErrInvalidVector)
}

func TestReadCSV_RoundTrip(t *testing.T) {
	ds := NewGenerator(7, 3).Generate()

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.X, back.X)
	assert.Equal(t, ds.Y, back.Y)
}

func TestReadCSV_Rejects(t *testing.T) {
	header := strings.Join(append(schema.FeatureNames(), "career"), ",")
	row := func(age, career string) string {
		fields := make([]string, schema.NumFeatures)
		for i := range fields {
			fields[i] = "0"
		}
		fields[0] = age
		return strings.Join(append(fields, career), ",")
	}

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"bad header", strings.Replace(header, schema.Age, "Years", 1) + "\n", schema.ErrInvalidVector},
		{"not a number", header + "\n" + row("old", "Software Engineer") + "\n", schema.ErrInvalidVector},
		{"out of range", header + "\n" + row("99", "Software Engineer") + "\n", schema.ErrInvalidVector},
		{"unknown career", header + "\n" + row("25", "Astronaut") + "\n", schema.ErrUnknownCareer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}
