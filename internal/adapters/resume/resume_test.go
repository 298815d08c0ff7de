package resume_test

import (
	"strings"
	"testing"

	"github.com/okian/sift/internal/adapters/resume"
	"github.com/okian/sift/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestText(t *testing.T) {
	Convey("Given resume payloads in various formats", t, func() {
		Convey("When the file is plain text", func() {
			got := resume.Text([]byte("Ten years of Go."), "resume.txt")

			Convey("Then it passes through unchanged", func() {
				So(got, ShouldEqual, "Ten years of Go.")
			})
		})

		Convey("When the file is markdown", func() {
			got := resume.Text([]byte("# Ada\n* Go"), "resume.md")

			Convey("Then it passes through unchanged", func() {
				So(got, ShouldEqual, "# Ada\n* Go")
			})
		})

		Convey("When a plain text file is oversized", func() {
			big := strings.Repeat("x", 20000)
			got := resume.Text([]byte(big), "resume.txt")

			Convey("Then it is truncated", func() {
				So(len(got), ShouldEqual, 10000)
			})
		})

		Convey("When the extension is unknown", func() {
			got := resume.Text([]byte("raw bytes"), "resume.docx")

			Convey("Then the raw bytes come back", func() {
				So(got, ShouldEqual, "raw bytes")
			})
		})

		Convey("When the filename has no extension", func() {
			got := resume.Text([]byte("no extension"), "resume")

			Convey("Then the raw bytes come back", func() {
				So(got, ShouldEqual, "no extension")
			})
		})

		Convey("When a PDF payload is corrupt", func() {
			data := []byte("%PDF-1.4 not actually a pdf")
			got := resume.Text(data, "resume.pdf")

			Convey("Then extraction degrades to truncated raw bytes", func() {
				So(got, ShouldEqual, string(data))
			})
		})
	})
}
