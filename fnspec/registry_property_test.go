package fnspec

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBuildClosureIdempotenceProperty verifies that for any chain of code
// specs linked by Uses, registering just the head of the chain yields the
// same registry (by set of names) as registering the full transitive
// closure directly — registration-closure idempotence holds regardless of
// chain length.
func TestBuildClosureIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("closure of the head equals direct registration of the full chain", prop.ForAll(
		func(chainLen int) bool {
			specs := make([]*CodeSpec, chainLen)
			for i := chainLen - 1; i >= 0; i-- {
				s := &CodeSpec{Name: fmt.Sprintf("spec-%d", i), Callable: noopCallable}
				if i < chainLen-1 {
					s.Uses = []Spec{specs[i+1]}
				}
				specs[i] = s
			}
			if chainLen == 0 {
				return true
			}

			all := make([]Spec, chainLen)
			for i, s := range specs {
				all[i] = s
			}

			closureReg, err := Build([]Spec{specs[0]})
			if err != nil {
				return false
			}
			directReg, err := Build(all)
			if err != nil {
				return false
			}
			return closureReg.Len() == directReg.Len() && closureReg.Len() == chainLen
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
