package compare

import (
	"errors"
	"log/slog"
	"math"

	"github.com/ayusman/mudra/internal/angle"
	lm "github.com/ayusman/mudra/internal/landmark"
)

// Reasons a part was left out of a comparison.
const (
	SkipAbsentUser    = "absent_user"
	SkipAbsentTarget  = "absent_target"
	SkipDegenerate    = "degenerate"
	SkipCountMismatch = "count_mismatch"
	SkipTooFewJoints  = "too_few_joints"
)

// Skip records why a part was not compared.
type Skip struct {
	Kind   lm.Kind `json:"kind"`
	Reason string  `json:"reason"`
}

// Result is the outcome of comparing one user observation with one target
// frame. It is never modified after Compare returns it.
type Result struct {
	Score         int          `json:"score"`
	WorstJoint    string       `json:"worst_joint"`
	ErrorCode     ErrorCode    `json:"error_code"`
	WorstError    float64      `json:"worst_error"`
	Parts         []PartResult `json:"parts"`
	PartsCompared int          `json:"parts_compared"`
	Skipped       []Skip       `json:"skipped,omitempty"`
}

// NoData is the result reported when nothing could be compared.
func NoData() Result {
	return Result{ErrorCode: CodeNoData}
}

// Comparator runs the normalize, extract, score and classify pipeline for
// every part present on both sides and combines the part results.
type Comparator struct {
	scorer *Scorer
	logger *slog.Logger
}

// NewComparator creates a comparator. A nil logger uses slog.Default().
func NewComparator(cal Calibration, logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{scorer: NewScorer(cal), logger: logger}
}

// Compare scores user against target. Only the first target hand is used;
// every user hand is tried against it and the best match is kept.
func (c *Comparator) Compare(user, target lm.Observation) Result {
	var res Result

	var targetHand lm.Set
	if len(target.Hands) > 0 {
		targetHand = target.Hands[0]
	}

	hand, reason, handTargetOK := c.comparePart(lm.KindHand, user.Hands, targetHand)
	if reason == "" {
		res.Parts = append(res.Parts, hand)
	} else {
		res.Skipped = append(res.Skipped, Skip{Kind: lm.KindHand, Reason: reason})
	}

	var userPoses []lm.Set
	if len(user.Pose) > 0 {
		userPoses = []lm.Set{user.Pose}
	}
	pose, reason, poseTargetOK := c.comparePart(lm.KindBody, userPoses, target.Pose)
	if reason == "" {
		res.Parts = append(res.Parts, pose)
	} else {
		res.Skipped = append(res.Skipped, Skip{Kind: lm.KindBody, Reason: reason})
	}

	res.PartsCompared = len(res.Parts)
	if res.PartsCompared == 0 {
		res.ErrorCode = missingCode(user, target, res.Skipped, handTargetOK, poseTargetOK)
		return res
	}

	var sum float64
	worst := -1
	for i, p := range res.Parts {
		sum += float64(p.Score)
		if worst < 0 || p.WorstError > res.Parts[worst].WorstError {
			worst = i
		}
	}
	res.Score = int(math.Round(sum / float64(res.PartsCompared)))
	res.WorstJoint = res.Parts[worst].WorstJoint
	res.WorstError = res.Parts[worst].WorstError
	res.ErrorCode = res.Parts[worst].ErrorCode
	return res
}

// missingCode picks the code of a comparison where no part was compared.
// Nothing detected on a side is NO_DATA. A corrupt detection on either side
// names its part. Otherwise the part the target needs but the user lacks is
// named.
func missingCode(user, target lm.Observation, skipped []Skip, handTargetOK, poseTargetOK bool) ErrorCode {
	if user.Empty() || target.Empty() {
		return CodeNoData
	}
	for _, sk := range skipped {
		if sk.Reason != SkipCountMismatch {
			continue
		}
		if sk.Kind == lm.KindHand {
			return CodeHandMissing
		}
		return CodePoseMissing
	}
	switch {
	case handTargetOK:
		return CodeHandMissing
	case poseTargetOK:
		return CodePoseMissing
	}
	return CodeNoData
}

// comparePart compares one part. It returns a skip reason when the part
// could not be compared, and whether the target side was usable.
func (c *Comparator) comparePart(kind lm.Kind, users []lm.Set, target lm.Set) (PartResult, string, bool) {
	if len(target) == 0 {
		return PartResult{}, SkipAbsentTarget, false
	}
	schema := angle.SchemaFor(kind)

	tn, err := lm.Normalize(target, kind)
	if err != nil {
		c.logSkip(kind, "target", err)
		return PartResult{}, skipReason(err), false
	}
	tv, err := angle.Extract(tn, schema)
	if err != nil {
		c.logSkip(kind, "target", err)
		return PartResult{}, skipReason(err), false
	}

	var best PartResult
	found := false
	reason := SkipAbsentUser
	for _, u := range users {
		if len(u) == 0 {
			continue
		}
		un, err := lm.Normalize(u, kind)
		if err != nil {
			c.logSkip(kind, "user", err)
			reason = skipReason(err)
			continue
		}
		uv, err := angle.Extract(un, schema)
		if err != nil {
			c.logSkip(kind, "user", err)
			reason = skipReason(err)
			continue
		}
		pr, err := c.scorer.Score(uv, tv)
		if err != nil {
			reason = skipReason(err)
			continue
		}
		if !found || pr.Score > best.Score {
			best, found = pr, true
		}
	}
	if !found {
		return PartResult{}, reason, true
	}
	return best, "", true
}

func (c *Comparator) logSkip(kind lm.Kind, side string, err error) {
	if errors.Is(err, lm.ErrCountMismatch) {
		c.logger.Warn("landmark count mismatch", "kind", kind.String(), "side", side, "error", err)
		return
	}
	c.logger.Debug("part skipped", "kind", kind.String(), "side", side, "error", err)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, lm.ErrDegenerateGeometry):
		return SkipDegenerate
	case errors.Is(err, lm.ErrCountMismatch):
		return SkipCountMismatch
	default:
		return SkipTooFewJoints
	}
}
