package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// olsFit is an ordinary least squares fit, used for first guesses
type olsFit struct {
	beta      []float64
	sigma2    float64       // residual variance, RSS / (n - p)
	cov       *mat.SymDense // sigma2 * inv(X'X)
	residuals []float64
}

func ols(x *mat.Dense, y []float64) (*olsFit, error) {
	n, p := x.Dims()
	if n <= p {
		return nil, errors.Errorf("OLS needs more rows (%d) than coefficients (%d)", n, p)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, errors.Wrap(err, "Least squares solve failed")
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	rss := 0.0
	for i := range resid {
		resid[i] = y[i] - fitted.AtVec(i)
		rss += resid[i] * resid[i]
	}
	sigma2 := rss / float64(n-p)

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, errors.New("Design matrix is rank deficient")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, errors.Wrap(err, "Could not invert X'X")
	}
	cov.ScaleSym(sigma2, &cov)

	return &olsFit{
		beta:      mat.Col(nil, 0, &beta),
		sigma2:    sigma2,
		cov:       &cov,
		residuals: resid,
	}, nil
}
