package moderation

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: a moderation level always maps to the same safety configuration.
func TestProperty_LevelMappingDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	levelGen := gen.OneConstOf(LevelStrict, LevelModerate, LevelRelaxed, LevelMinimal)

	properties.Property("same level yields equal safety settings", prop.ForAll(
		func(l Level) bool {
			return reflect.DeepEqual(l.SafetySettings(), l.SafetySettings())
		},
		levelGen,
	))

	properties.Property("every category shares the level threshold", prop.ForAll(
		func(l Level) bool {
			for _, s := range l.SafetySettings() {
				if s.Threshold != l.Threshold() {
					return false
				}
			}
			return true
		},
		levelGen,
	))

	properties.Property("parsing is case insensitive", prop.ForAll(
		func(l Level, upper bool) bool {
			in := string(l)
			if upper {
				in = strings.ToUpper(in)
			}
			got, err := ParseLevel(in, DefaultLevel)
			return err == nil && got == l
		},
		levelGen,
		gen.Bool(),
	))

	properties.TestingRun(t)
}
