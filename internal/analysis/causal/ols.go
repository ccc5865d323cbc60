package causal

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/moolen/sentinel/internal/models"
)

// maxConditionNumber bounds the design matrix conditioning; beyond it the
// columns are treated as collinear
const maxConditionNumber = 1e12

// fitOLS regresses y on an intercept, the treatment indicator and the
// confounder, and returns the treatment coefficient. A singular or
// ill-conditioned design yields a *models.DegeneracyError.
func fitOLS(y, treated, confounder []float64) (float64, error) {
	n := len(y)
	x := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, treated[i])
		x.Set(i, 2, confounder[i])
	}

	cond := mat.Cond(x, 2)
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > maxConditionNumber {
		return 0, models.NewDegeneracyError("treatment and confounder are collinear (condition number %g)", cond)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, mat.NewVecDense(n, y)); err != nil {
		degenerate := models.NewDegeneracyError("design matrix is singular")
		degenerate.Err = err
		return 0, degenerate
	}

	effect := beta.AtVec(1)
	if math.IsNaN(effect) || math.IsInf(effect, 0) {
		return 0, models.NewDegeneracyError("treatment coefficient is not finite")
	}
	return effect, nil
}
