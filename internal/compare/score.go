// Package compare scores a user's landmarks against a target pose and
// names the single most useful correction.
package compare

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/angle"
	lm "github.com/ayusman/mudra/internal/landmark"
)

var (
	// ErrSchemaMismatch is returned when two vectors come from different schemas.
	ErrSchemaMismatch = errors.New("angle schema mismatch")

	// ErrTooFewJoints is returned when no joint is valid on both sides.
	ErrTooFewJoints = errors.New("too few comparable joints")
)

// Scoring methods reported in PartResult.Method.
const (
	MethodCosine    = "cosine"
	MethodMeanError = "mean_error"
)

// Calibration holds the tunable constants of scoring and classification.
type Calibration struct {
	// HandSensitivity is the score lost per degree of mean hand error.
	HandSensitivity float64 `yaml:"hand_sensitivity" json:"hand_sensitivity"`
	// BodySensitivity is the score lost per degree of mean body error.
	BodySensitivity float64 `yaml:"body_sensitivity" json:"body_sensitivity"`
	// MinCosineJoints is the fewest matched joints for which cosine
	// similarity is computed.
	MinCosineJoints int `yaml:"min_cosine_joints" json:"min_cosine_joints"`
	// ToleranceDegrees is the largest worst-joint error still reported as NONE.
	ToleranceDegrees float64 `yaml:"tolerance_degrees" json:"tolerance_degrees"`
	// FingerSpreadDegrees splits finger errors into spread and closed.
	FingerSpreadDegrees float64 `yaml:"finger_spread_degrees" json:"finger_spread_degrees"`
}

// DefaultCalibration returns the calibration used when none is configured.
func DefaultCalibration() Calibration {
	return Calibration{
		HandSensitivity:     1.5,
		BodySensitivity:     1.2,
		MinCosineJoints:     4,
		ToleranceDegrees:    10,
		FingerSpreadDegrees: 30,
	}
}

// Sensitivity returns the mean-error sensitivity for kind.
func (c Calibration) Sensitivity(kind lm.Kind) float64 {
	if kind == lm.KindBody {
		return c.BodySensitivity
	}
	return c.HandSensitivity
}

// JointError is the deviation of one joint. Signed is user minus target.
type JointError struct {
	Joint  string  `json:"joint"`
	User   float64 `json:"user"`
	Target float64 `json:"target"`
	Signed float64 `json:"signed"`
	Error  float64 `json:"error"`
}

// PartResult is the comparison of one body part.
type PartResult struct {
	Kind        lm.Kind      `json:"kind"`
	Score       int          `json:"score"`
	Method      string       `json:"method"`
	Cosine      float64      `json:"cosine,omitempty"`
	MeanError   float64      `json:"mean_error"`
	Compared    int          `json:"compared"`
	Joints      []JointError `json:"joints"`
	WorstJoint  string       `json:"worst_joint"`
	WorstError  float64      `json:"worst_error"`
	WorstSigned float64      `json:"worst_signed"`
	ErrorCode   ErrorCode    `json:"error_code"`
}

// Scorer turns two angle vectors into a 0-100 similarity score.
type Scorer struct {
	cal Calibration
}

// NewScorer creates a scorer with the given calibration.
func NewScorer(cal Calibration) *Scorer {
	return &Scorer{cal: cal}
}

// Score compares user against target over the joints valid on both sides.
//
// With at least MinCosineJoints matched joints the cosine of the two
// zero-padded vectors is computed. Joint angles are all positive, so the
// cosine stays close to 1 even for clearly different shapes; the part score
// is therefore capped by the mean-error score. Below that joint count only
// the mean-error score is used.
func (s *Scorer) Score(user, target angle.Vector) (PartResult, error) {
	if user.Schema == nil || user.Schema != target.Schema {
		return PartResult{}, ErrSchemaMismatch
	}
	schema := user.Schema

	n := schema.Len()
	u := make([]float64, n)
	t := make([]float64, n)
	joints := make([]JointError, 0, n)
	var sum float64
	for i, j := range schema.Joints {
		if !user.Valid[i] || !target.Valid[i] {
			continue
		}
		u[i], t[i] = user.Degrees[i], target.Degrees[i]
		signed := user.Degrees[i] - target.Degrees[i]
		joints = append(joints, JointError{
			Joint:  j.Name,
			User:   user.Degrees[i],
			Target: target.Degrees[i],
			Signed: signed,
			Error:  math.Abs(signed),
		})
		sum += math.Abs(signed)
	}
	if len(joints) == 0 {
		return PartResult{}, fmt.Errorf("score %s: %w", schema.ID, ErrTooFewJoints)
	}

	// Stable sort keeps schema order among equal errors.
	sort.SliceStable(joints, func(a, b int) bool {
		return joints[a].Error > joints[b].Error
	})

	res := PartResult{
		Kind:        schema.Kind,
		Compared:    len(joints),
		Joints:      joints,
		MeanError:   sum / float64(len(joints)),
		WorstJoint:  joints[0].Joint,
		WorstError:  joints[0].Error,
		WorstSigned: joints[0].Signed,
	}

	errorScore := clampScore(100 - res.MeanError*s.cal.Sensitivity(schema.Kind))
	res.Score, res.Method = errorScore, MethodMeanError

	if len(joints) >= s.cal.MinCosineJoints {
		nu, nt := floats.Norm(u, 2), floats.Norm(t, 2)
		if nu > 0 && nt > 0 {
			res.Cosine = floats.Dot(u, t) / (nu * nt)
			if cosScore := clampScore(res.Cosine * 100); cosScore <= errorScore {
				res.Score, res.Method = cosScore, MethodCosine
			}
		}
	}

	res.ErrorCode = Classify(schema.Kind, res.WorstJoint, res.WorstSigned, s.cal)
	return res, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
