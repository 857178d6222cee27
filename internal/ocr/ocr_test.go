package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
	// pages is how many PNGs a pdftoppm call writes next to its prefix.
	pages int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			_ = os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("x"), 0o644)
		}
	}
	return []byte(f.stdout), nil, nil
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tDECEDENT'S\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tNAME\n" +
	"5\t1\t1\t1\t2\t1\t0\t0\t10\t10\t50\tJOHN\n" +
	"5\t1\t1\t1\t2\t2\t0\t0\t10\t10\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t0\t0\t10\t10\t95\t_____\n"

func TestParseTSV(t *testing.T) {
	page := ParseTSV(sampleTSV)
	want := []document.Segment{
		{Text: "DECEDENT'S NAME", Confidence: 0.8},
		{Text: "JOHN", Confidence: 0.5},
	}
	if len(page.Segments) != len(want) {
		t.Fatalf("got %d segments: %+v", len(page.Segments), page.Segments)
	}
	for i, w := range want {
		got := page.Segments[i]
		if got.Text != w.Text || got.Confidence < w.Confidence-1e-9 || got.Confidence > w.Confidence+1e-9 {
			t.Errorf("segment %d = %+v, want %+v", i, got, w)
		}
	}
	if page.Text() != "DECEDENT'S NAME, JOHN" {
		t.Errorf("page text = %q", page.Text())
	}
}

func TestTesseractRecognize(t *testing.T) {
	r := &fakeRunner{stdout: sampleTSV}
	eng := NewTesseract(Config{PSM: 6}, r, nil)
	page, err := eng.Recognize(context.Background(), "/tmp/page-1.png")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Segments) != 2 {
		t.Errorf("segments = %d", len(page.Segments))
	}
	cmd := strings.Join(r.calls[0], " ")
	if !strings.HasPrefix(cmd, "tesseract /tmp/page-1.png stdout -l eng --psm 6") || !strings.HasSuffix(cmd, " tsv") {
		t.Errorf("unexpected command %q", cmd)
	}

	empty := NewTesseract(Config{}, &fakeRunner{stdout: "level\n"}, nil)
	if _, err := empty.Recognize(context.Background(), "x.png"); !errors.Is(err, common.ErrRecognition) {
		t.Errorf("empty output err = %v, want recognition error", err)
	}

	failing := NewTesseract(Config{}, &fakeRunner{err: errors.New("exit 1")}, nil)
	if _, err := failing.Recognize(context.Background(), "x.png"); !errors.Is(err, common.ErrCollaborator) {
		t.Errorf("exec failure err = %v, want collaborator error", err)
	}
}

func TestRenderPDF(t *testing.T) {
	r := &fakeRunner{pages: 3}
	c := NewConverter(Config{MaxPages: 2}, r, nil)
	set, err := c.Render(context.Background(), "/data/drw.PDF")
	if err != nil {
		t.Fatal(err)
	}
	defer set.Cleanup()

	if len(set.Images) != 2 {
		t.Fatalf("images = %v", set.Images)
	}
	if filepath.Base(set.Images[0]) != "page-1.png" || filepath.Base(set.Images[1]) != "page-2.png" {
		t.Errorf("pages out of order: %v", set.Images)
	}
	cmd := strings.Join(r.calls[0], " ")
	if !strings.Contains(cmd, "-r 300 -png -f 1 -l 2 /data/drw.PDF") {
		t.Errorf("unexpected command %q", cmd)
	}

	dir := filepath.Dir(set.Images[0])
	set.Cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir not removed")
	}
}

func TestRenderPassThroughAndUnsupported(t *testing.T) {
	c := NewConverter(Config{}, &fakeRunner{}, nil)
	set, err := c.Render(context.Background(), "/data/scan.jpeg")
	if err != nil || len(set.Images) != 1 || set.Images[0] != "/data/scan.jpeg" {
		t.Fatalf("pass-through = %+v, %v", set, err)
	}
	set.Cleanup()

	if _, err := c.Render(context.Background(), "/data/notes.docx"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("docx err = %v, want input error", err)
	}
}

func TestRenderTranscodesBMP(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scan.bmp")
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c := NewConverter(Config{}, &fakeRunner{}, nil)
	set, err := c.Render(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Cleanup()

	out, err := os.Open(set.Images[0])
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	decoded, err := png.Decode(out)
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v", decoded.Bounds())
	}
}

type fakeEngine struct {
	pages map[string]document.Page
}

func (f fakeEngine) Recognize(_ context.Context, img string) (document.Page, error) {
	p, ok := f.pages[filepath.Base(img)]
	if !ok {
		return document.Page{}, common.RecognitionError("no text")
	}
	return p, nil
}

func TestReaderReadsPagesInOrder(t *testing.T) {
	eng := fakeEngine{pages: map[string]document.Page{
		"page-1.png": {Segments: []document.Segment{{Text: "first", Confidence: 0.9}}},
		"page-2.png": {Segments: []document.Segment{{Text: "second", Confidence: 0.7}}},
	}}
	rd := NewReader(NewConverter(Config{MaxPages: 5}, &fakeRunner{pages: 2}, nil), eng, nil)
	pages, err := rd.Read(context.Background(), "/data/cert.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].Text() != "first" || pages[1].Text() != "second" {
		t.Errorf("pages = %+v", pages)
	}

	rd = NewReader(NewConverter(Config{MaxPages: 5}, &fakeRunner{pages: 3}, nil), eng, nil)
	if _, err := rd.Read(context.Background(), "/data/cert.pdf"); !errors.Is(err, common.ErrRecognition) {
		t.Errorf("blank page err = %v, want recognition error", err)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  JOHN\t\tDOE  ": "JOHN DOE",
		"DOB 01/02/1940":  "DOB 01/02/1940",
		"-----":           "",
		"":                "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReaderFailsWithoutPages(t *testing.T) {
	rd := NewReader(NewConverter(Config{MaxPages: 5}, &fakeRunner{}, nil), fakeEngine{}, nil)
	pages, err := rd.Read(context.Background(), "/data/blank.pdf")
	if !errors.Is(err, common.ErrRecognition) {
		t.Fatalf("err = %v, want recognition error", err)
	}
	if pages != nil {
		t.Errorf("pages = %+v", pages)
	}
}
