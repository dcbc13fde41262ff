package profile_test

import (
	"errors"
	"testing"

	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/profile"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidate(t *testing.T) {
	Convey("Given a valid profile with mixed-case enums", t, func() {
		p := &profile.UserProfile{
			HeightInches:    75,
			WingspanInches:  79,
			ExperienceLevel: "Advanced",
			BodyType:        " LEAN ",
			ShootingHand:    "Left",
		}

		Convey("Then validation normalizes it", func() {
			So(p.Validate(), ShouldBeNil)
			So(p.ExperienceLevel, ShouldEqual, profile.Advanced)
			So(p.BodyType, ShouldEqual, profile.Lean)
			So(p.Side(pose.Right), ShouldEqual, pose.Left)
			ratio, ok := p.WingspanRatio()
			So(ok, ShouldBeTrue)
			So(ratio, ShouldAlmostEqual, 79.0/75.0, 1e-12)
		})
	})

	Convey("Given invalid profiles", t, func() {
		bad := []profile.UserProfile{
			{HeightInches: 30},
			{HeightInches: 120},
			{HeightInches: 72, WingspanInches: 20},
			{HeightInches: 72, ExperienceLevel: "legend"},
			{HeightInches: 72, BodyType: "tall"},
			{HeightInches: 72, ShootingHand: "both"},
		}
		for i := range bad {
			err := bad[i].Validate()
			So(errors.Is(err, profile.ErrInvalidUserProfile), ShouldBeTrue)
		}
	})

	Convey("Given a nil profile", t, func() {
		var p *profile.UserProfile

		Convey("Then it is valid and defers to the fallback side", func() {
			So(p.Validate(), ShouldBeNil)
			So(p.Side(pose.Right), ShouldEqual, pose.Right)
			_, ok := p.WingspanRatio()
			So(ok, ShouldBeFalse)
		})
	})
}
