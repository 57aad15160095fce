package session

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dials/internal/declaration/models"
)

func TestChooseStrategy(t *testing.T) {
	t.Run("empty diff needs no call", func(t *testing.T) {
		assert.Equal(t, StrategyNone, ChooseStrategy(Diff{}))
	})
	t.Run("single scalar is a patch", func(t *testing.T) {
		assert.Equal(t, StrategyPatch, ChooseStrategy(Diff{WitnessSigned: ptr(true)}))
	})
	t.Run("one collection is a patch", func(t *testing.T) {
		assert.Equal(t, StrategyPatch, ChooseStrategy(Diff{Spouses: []models.Person{}}))
	})
	t.Run("two collections escalate", func(t *testing.T) {
		assert.Equal(t, StrategyPut, ChooseStrategy(Diff{Spouses: []models.Person{}, Children: []models.Person{}}))
	})
	t.Run("oversized body escalates", func(t *testing.T) {
		d := Diff{WitnessAddress: ptr(strings.Repeat("a", PutThreshold))}
		require.Greater(t, BodySize(d), PutThreshold)
		assert.Equal(t, StrategyPut, ChooseStrategy(d))
	})
}

func TestChooseStrategyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := &models.Declaration{
		ID:      "1",
		Profile: models.Profile{MaritalStatus: "single"},
		Witness: models.Witness{Name: "W"},
	}

	randomPeople := func() []models.Person {
		switch rng.Intn(3) {
		case 0:
			return nil
		case 1:
			return []models.Person{}
		}
		n := rng.Intn(300)
		out := make([]models.Person, n)
		for i := range out {
			out[i] = models.Person{FirstName: strings.Repeat("n", rng.Intn(120)), Surname: "S"}
		}
		return out
	}
	randomString := func() *string {
		if rng.Intn(2) == 0 {
			return nil
		}
		return ptr(strings.Repeat("x", rng.Intn(50)))
	}

	for i := 0; i < 500; i++ {
		p := Partial{
			MaritalStatus:  randomString(),
			WitnessName:    randomString(),
			WitnessAddress: randomString(),
			WitnessPhone:   randomString(),
			Spouses:        randomPeople(),
			Children:       randomPeople(),
		}
		if rng.Intn(2) == 0 {
			p.WitnessSigned = ptr(rng.Intn(2) == 0)
		}

		d := ComputeDiff(base, p)
		got := ChooseStrategy(d)

		switch {
		case d.Empty():
			assert.Equal(t, StrategyNone, got)
		case BodySize(d) > PutThreshold || d.CollectionsTouched() > 1:
			assert.Equal(t, StrategyPut, got, "case %d", i)
		default:
			assert.Equal(t, StrategyPatch, got, "case %d", i)
		}
	}
}

func TestComputeDiff(t *testing.T) {
	base := &models.Declaration{
		Profile: models.Profile{MaritalStatus: "single"},
		Witness: models.Witness{Signed: true, Name: "W", Address: "A", Phone: "+2557"},
	}

	t.Run("identical partial is empty", func(t *testing.T) {
		d := ComputeDiff(base, Partial{
			MaritalStatus:  ptr("single"),
			WitnessSigned:  ptr(true),
			WitnessName:    ptr("W"),
			WitnessAddress: ptr("A"),
			WitnessPhone:   ptr("+2557"),
		})
		assert.True(t, d.Empty())
		assert.Empty(t, d.Body())
	})

	t.Run("collections are carried verbatim", func(t *testing.T) {
		d := ComputeDiff(base, Partial{Children: []models.Person{}})
		assert.False(t, d.Empty())
		assert.Equal(t, map[string]any{"children": []models.Person{}}, d.Body())
	})

	t.Run("nil baseline compares against zero values", func(t *testing.T) {
		d := ComputeDiff(nil, Partial{MaritalStatus: ptr("")})
		assert.True(t, d.Empty(), "empty string equals the zero baseline")
		d = ComputeDiff(nil, Partial{WitnessSigned: ptr(true)})
		assert.Equal(t, map[string]any{"witness_signed": true}, d.Body())
	})
}
