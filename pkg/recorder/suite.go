package recorder

import (
	"github.com/stretchr/testify/suite"
)

// Suite is a testify suite that arms a fresh Recorder before every
// test method. Embed it in place of suite.Suite:
//
//	type WidgetSuite struct{ recorder.Suite }
//
//	func (s *WidgetSuite) SetupTest() {
//		s.Suite.SetupTest()
//		s.Watch(Widget.Objects)
//	}
//
// Reads are recorded from any _test.go file unless Options carries
// WithTestFile.
type Suite struct {
	suite.Suite

	// Options are applied to every Recorder the suite arms.
	Options []Option

	rec *Recorder
}

// SetupTest arms the recorder for the current test method. Suites that
// define their own SetupTest must call it.
func (s *Suite) SetupTest() {
	s.rec = Arm(s.T(), s.Options...)
}

// Recorder returns the recorder of the current test method.
func (s *Suite) Recorder() *Recorder {
	return s.rec
}

// Watch attaches managers to the current test's recorder.
func (s *Suite) Watch(ms ...Instrumentable) {
	if s.rec == nil {
		s.T().Errorf("recorder.Suite: Watch called before SetupTest")
		return
	}
	for _, m := range ms {
		if err := s.rec.Attach(m); err != nil {
			s.T().Errorf("%v", err)
		}
	}
}
