package report_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/internal/domain/similarity"
	"github.com/okian/shotlab/internal/domain/vision"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newBuilder() *report.Builder {
	return report.NewBuilder(
		report.WithClock(func() time.Time { return fixedNow }),
		report.WithIDGenerator(func() string { return "generated-id" }),
	)
}

func available(name angles.Name, v float64, tier angles.Tier) angles.Measurement {
	return angles.Measurement{Name: name, Value: &v, Tier: tier, Status: angles.Available}
}

func keypoints() []pose.Keypoint {
	return []pose.Keypoint{{Name: "right_wrist", X: 0.5, Y: 0.1, Confidence: 0.9}}
}

func TestBuild(t *testing.T) {
	Convey("Given complete pipeline output", t, func() {
		in := report.Input{
			ImageID:   "img-1",
			Keypoints: keypoints(),
			Angles: []angles.Measurement{
				available(angles.Elbow, 90, angles.Optimal),
				available(angles.Knee, 100, angles.Minor),
				available(angles.Release, 30, angles.Major),
				available(angles.Hip, 170, angles.Optimal),
				{Name: angles.Wrist, Status: angles.Unavailable},
			},
			Phase:  phase.Release,
			Vision: &vision.Result{Provider: vision.RolePrimary, Feedback: vision.Feedback{FormAssessment: "ok", Rating: vision.Good}},
		}
		r, err := newBuilder().Build(in)

		Convey("Then scores blend the available terms", func() {
			So(err, ShouldBeNil)
			So(r.ImageID(), ShouldEqual, "img-1")
			So(r.CreatedAt(), ShouldEqual, fixedNow)
			// mechanics: (100 + 70 + 30 + 100) / 4
			So(r.MechanicsScore(), ShouldEqual, 75)
			// overall: 0.5*50 + 0.15*100 + 0.35*82
			So(r.OverallScore(), ShouldAlmostEqual, 68.7, 1e-9)
		})

		Convey("Then accessors return copies", func() {
			ms := r.Angles()
			*ms[0].Value = 1
			So(*r.Angles()[0].Value, ShouldEqual, 90)

			v := r.Vision()
			v.FormAssessment = "changed"
			So(r.Vision().FormAssessment, ShouldEqual, "ok")

			kps := r.Keypoints()
			kps[0].X = 0
			So(r.Keypoints()[0].X, ShouldEqual, 0.5)
		})

		Convey("Then mutating the input afterwards does not change the report", func() {
			*in.Angles[0].Value = 10
			in.Vision.Rating = vision.Fair
			So(*r.Angles()[0].Value, ShouldEqual, 90)
			So(r.Vision().Rating, ShouldEqual, vision.Good)
		})
	})

	Convey("Given exhausted providers", t, func() {
		r, err := newBuilder().Build(report.Input{
			Keypoints: keypoints(),
			Angles:    []angles.Measurement{available(angles.Elbow, 90, angles.Optimal)},
			Phase:     phase.Unknown,
			VisionErr: fmt.Errorf("%w: boom", vision.ErrAllProvidersExhausted),
		})

		Convey("Then vision is null with the error recorded and an ID assigned", func() {
			So(err, ShouldBeNil)
			So(r.Vision(), ShouldBeNil)
			So(r.VisionError(), ShouldContainSubstring, "exhausted")
			So(r.ImageID(), ShouldEqual, "generated-id")
			// 0.5*100 + 0.15*0 over 0.65
			So(r.OverallScore(), ShouldAlmostEqual, 76.9, 1e-9)

			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			var doc map[string]any
			So(json.Unmarshal(b, &doc), ShouldBeNil)
			So(doc, ShouldContainKey, "vision")
			So(doc["vision"], ShouldBeNil)
			So(doc["phase"], ShouldEqual, "unknown")
			So(doc["similarity_matches"], ShouldResemble, []any{})
		})
	})

	Convey("Given keypoints but no measurements", t, func() {
		r, err := newBuilder().Build(report.Input{ImageID: "x", Keypoints: keypoints()})

		Convey("Then the six angles are filled as unavailable", func() {
			So(err, ShouldBeNil)
			ms := r.Angles()
			So(len(ms), ShouldEqual, 6)
			for _, m := range ms {
				So(m.Status, ShouldEqual, angles.Unavailable)
				So(m.Value, ShouldBeNil)
			}
			So(r.MechanicsScore(), ShouldEqual, 0)
			// only the phase term is available, and the phase is unknown
			So(r.OverallScore(), ShouldEqual, 0)
		})
	})

	Convey("Given an image-only report with an excellent rating", t, func() {
		r, err := newBuilder().Build(report.Input{
			ImageID: "img-only",
			Vision:  &vision.Result{Provider: vision.RolePrimary, Feedback: vision.Feedback{Rating: vision.Excellent}},
		})

		Convey("Then the unknown phase still costs its share", func() {
			So(err, ShouldBeNil)
			So(r.Phase(), ShouldEqual, phase.Unknown)
			// 0.35*95 + 0.15*0 over 0.5
			So(r.OverallScore(), ShouldAlmostEqual, 66.5, 1e-9)
		})

		Convey("Then it scores the same as a keypoint report whose phase is unknown", func() {
			withKps, err := newBuilder().Build(report.Input{
				ImageID:   "img-only",
				Keypoints: keypoints(),
				Vision:    &vision.Result{Provider: vision.RolePrimary, Feedback: vision.Feedback{Rating: vision.Excellent}},
			})
			So(err, ShouldBeNil)
			So(withKps.OverallScore(), ShouldEqual, r.OverallScore())
		})
	})

	Convey("Given neither keypoints nor vision", t, func() {
		r, err := newBuilder().Build(report.Input{ImageID: "x"})
		So(err, ShouldBeNil)
		So(r.Angles(), ShouldBeEmpty)
		So(r.Phase(), ShouldEqual, phase.Unknown)
		So(r.OverallScore(), ShouldEqual, 0)
	})

	Convey("Given more than five unsorted matches", t, func() {
		var matches []similarity.Match
		for i, s := range []float64{10, 90, 50, 90, 70, 30, 80} {
			matches = append(matches, similarity.Match{ShooterName: fmt.Sprintf("S%d", i), Score: s})
		}
		r, err := newBuilder().Build(report.Input{ImageID: "x", Matches: matches})

		Convey("Then the list is re-sorted and capped", func() {
			So(err, ShouldBeNil)
			got := r.SimilarityMatches()
			So(len(got), ShouldEqual, 5)
			So(got[0].ShooterName, ShouldEqual, "S1")
			So(got[1].ShooterName, ShouldEqual, "S3")
			So(got[4].Score, ShouldEqual, 50)
		})
	})

	Convey("Given inconsistent angles", t, func() {
		_, err := newBuilder().Build(report.Input{Angles: []angles.Measurement{
			available(angles.Elbow, 90, angles.Optimal),
			available(angles.Elbow, 91, angles.Optimal),
		}})
		So(errors.Is(err, report.ErrInvalidInput), ShouldBeTrue)

		_, err = newBuilder().Build(report.Input{Angles: []angles.Measurement{{Name: angles.Knee, Status: angles.Available}}})
		So(errors.Is(err, report.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given the default builder", t, func() {
		r, err := report.NewBuilder().Build(report.Input{})
		So(err, ShouldBeNil)
		So(len(r.ImageID()), ShouldEqual, 36)
		So(r.CreatedAt().Location(), ShouldEqual, time.UTC)
	})
}
