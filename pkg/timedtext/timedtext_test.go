package timedtext

import (
	"math"
	"strings"
	"testing"

	"github.com/matzehuels/framepen/pkg/encode"
	"github.com/matzehuels/framepen/pkg/errors"
)

// flat builds an encoded rows×cols frame of one block glyph color.
func flat(rows, cols int, c encode.RGB) encode.Frame {
	g := make(encode.Grid, rows)
	for i := range g {
		g[i] = make([]encode.Cell, cols)
		for j := range g[i] {
			g[i][j] = encode.Cell{Glyph: encode.BlockGlyph, Color: c, Sample: c}
		}
	}
	return encode.Frame{Grid: g, Rows: encode.EncodeGrid(g, false)}
}

func mustTimeline(t *testing.T, src, tgt float64) Timeline {
	t.Helper()
	tl, err := NewTimeline(src, tgt)
	if err != nil {
		t.Fatalf("NewTimeline(%v, %v): %v", src, tgt, err)
	}
	return tl
}

func TestPenRegistry(t *testing.T) {
	r := NewPenRegistry()
	colors := []string{"#FF0000", "#00FF00", "#FF0000", "#0000FF", "#0000FF", "#00FF00"}
	want := []int{0, 1, 0, 2, 2, 1}
	for i, c := range colors {
		if got := r.IDOf(c); got != want[i] {
			t.Errorf("IDOf(%s) at %d = %d, want %d", c, i, got, want[i])
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	pens := r.Pens()
	for i, p := range pens {
		if p.ID != i {
			t.Errorf("pen %d has id %d", i, p.ID)
		}
	}
	if pens[0].Color != "#FF0000" || pens[2].Color != "#0000FF" {
		t.Errorf("pens not in first-seen order: %v", pens)
	}
	if _, ok := r.Lookup("#FFFFFF"); ok {
		t.Error("Lookup should not register colors")
	}
	if r.Len() != 3 {
		t.Error("Lookup changed the registry")
	}
}

func TestRenderBody(t *testing.T) {
	red, blue := encode.RGB{R: 255}, encode.RGB{B: 255}
	rows := []encode.Row{
		{{Color: red, Text: "ab"}, {Color: blue, Text: "&lt;"}},
		{{Color: blue, Text: `" `}},
	}
	reg := NewPenRegistry()
	got := RenderBody(rows, reg)
	want := `<s p="0">ab</s><s p="1">&lt;</s>` + "\n" + `<s p="1">" </s>` + "\n"
	if got != want {
		t.Errorf("RenderBody =\n%q\nwant\n%q", got, want)
	}
	if again := RenderBody(rows, reg); again != got {
		t.Error("RenderBody is not deterministic")
	}
}

func TestTimeline(t *testing.T) {
	tests := []struct {
		src, tgt float64
		step     int
		nominal  int64
	}{
		{10, 10, 1, 100},
		{30, 10, 3, 100},
		{29.97, 10, 2, 67},
		{25, 0, 1, 40},
		{24, 30, 1, 42},
		{60, 7, 8, 133},
	}
	for _, tt := range tests {
		tl := mustTimeline(t, tt.src, tt.tgt)
		if tl.Step() != tt.step || tl.NominalMs() != tt.nominal {
			t.Errorf("NewTimeline(%v, %v) step=%d nominal=%d, want %d %d",
				tt.src, tt.tgt, tl.Step(), tl.NominalMs(), tt.step, tt.nominal)
		}
	}

	tl := mustTimeline(t, 30, 10)
	for i, want := range map[int]int64{0: 0, 1: 33, 3: 100, 100: 3333, 30000: 1000000} {
		if got := tl.StartMs(i); got != want {
			t.Errorf("StartMs(%d) = %d, want %d", i, got, want)
		}
	}
	if !tl.Sampled(0) || tl.Sampled(1) || !tl.Sampled(6) {
		t.Error("Sampled does not follow the step")
	}
	if n := tl.SampledCount(10); n != 4 {
		t.Errorf("SampledCount(10) = %d, want 4", n)
	}
}

func TestTimelineInvalid(t *testing.T) {
	for _, tt := range [][2]float64{{0, 10}, {-1, 10}, {30, -1}, {math.NaN(), 10}, {math.Inf(1), 10}} {
		if _, err := NewTimeline(tt[0], tt[1]); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("NewTimeline(%v, %v) error = %v, want INVALID_CONFIG", tt[0], tt[1], err)
		}
	}
}

func TestTimelineNoDrift(t *testing.T) {
	tl := mustTimeline(t, 29.97, 0)
	// One hour of NTSC video ends within a millisecond of its true length.
	n := 107892
	got := tl.StartMs(n)
	exact := float64(n) * 1000 / 29.97
	if math.Abs(float64(got)-exact) > 1 {
		t.Errorf("StartMs(%d) = %d, exact %.3f", n, got, exact)
	}
}

func TestCoalescerThresholdZero(t *testing.T) {
	reg := NewPenRegistry()
	c := NewCoalescer(0, reg)
	f := flat(2, 4, encode.RGB{R: 10})
	for i := 0; i < 5; i++ {
		if !c.Push(int64(i*100), 100, f) {
			t.Errorf("frame %d merged with threshold 0", i)
		}
	}
	c.Flush()
	if n := len(c.Blocks()); n != 5 {
		t.Errorf("got %d blocks, want 5", n)
	}
}

func TestCoalescerMergesDuplicates(t *testing.T) {
	reg := NewPenRegistry()
	c := NewCoalescer(1, reg)
	a := flat(3, 4, encode.RGB{R: 10})
	nearA := flat(3, 4, encode.RGB{R: 20})   // score 40: duplicate
	b := flat(3, 4, encode.RGB{R: 200, G: 9}) // score far above 100

	if !c.Push(0, 100, a) {
		t.Fatal("first frame must be kept")
	}
	if c.Push(100, 100, nearA) {
		t.Error("near-identical frame should merge")
	}
	if !c.Push(200, 100, b) {
		t.Error("different frame should be kept")
	}
	c.Flush()

	blocks := c.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].StartMs != 0 || blocks[0].DurationMs != 200 {
		t.Errorf("first block = %+v", blocks[0])
	}
	if blocks[1].StartMs != 200 || blocks[1].DurationMs != 100 {
		t.Errorf("second block = %+v", blocks[1])
	}
	// The merged frame's color was never registered.
	if reg.Len() != 2 {
		t.Errorf("registered %d pens, want 2", reg.Len())
	}
	if _, ok := reg.Lookup(encode.RGB{R: 20}.Hex()); ok {
		t.Error("duplicate frame registered its pen")
	}
}

func TestCoalescerComparesWithKeptFrame(t *testing.T) {
	// A slow fade never exceeds the threshold frame to frame, but drifts
	// away from the kept frame and eventually starts a new block.
	c := NewCoalescer(1, NewPenRegistry())
	kept := 0
	for i := 0; i < 10; i++ {
		if c.Push(int64(i*100), 100, flat(1, 4, encode.RGB{R: uint8(i * 10)})) {
			kept++
		}
	}
	c.Flush()
	// Score per step is 40; a new block starts every third frame.
	if kept != 4 || len(c.Blocks()) != 4 {
		t.Errorf("kept %d frames in %d blocks, want 4", kept, len(c.Blocks()))
	}
}

func TestCoalescerHugeThreshold(t *testing.T) {
	c := NewCoalescer(math.MaxInt, NewPenRegistry())
	for i := 0; i < 4; i++ {
		c.Push(int64(i*100), 100, flat(2, 2, encode.RGB{R: uint8(i * 80), G: 255}))
	}
	c.Flush()
	if len(c.Blocks()) != 1 || c.Blocks()[0].DurationMs != 400 {
		t.Errorf("blocks = %+v, want one block of 400ms", c.Blocks())
	}
}

func TestCoalescerTrimsRoundingOverlap(t *testing.T) {
	// 29.97 fps sampled every second frame: nominal 67 ms, starts
	// 0, 66, 133, 200, 266.
	tl := mustTimeline(t, 29.97, 10)
	c := NewCoalescer(1, NewPenRegistry())
	a := flat(1, 2, encode.RGB{R: 10})
	b := flat(1, 2, encode.RGB{B: 200})

	frames := []encode.Frame{a, b, b, b, a}
	for i, f := range frames {
		c.Push(tl.StartMs(i*tl.Step()), tl.NominalMs(), f)
	}
	c.Flush()

	want := []Block{
		{StartMs: 0, DurationMs: 66},
		{StartMs: 66, DurationMs: 200},
		{StartMs: 266, DurationMs: 67},
	}
	got := c.Blocks()
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].StartMs != want[i].StartMs || got[i].DurationMs != want[i].DurationMs {
			t.Errorf("block %d = t%d d%d, want t%d d%d", i, got[i].StartMs, got[i].DurationMs, want[i].StartMs, want[i].DurationMs)
		}
		if i > 0 && got[i-1].EndMs() > got[i].StartMs {
			t.Errorf("block %d overlaps block %d", i-1, i)
		}
	}
}

func TestCoalescerShapeChangeNeverMerges(t *testing.T) {
	c := NewCoalescer(math.MaxInt, NewPenRegistry())
	c.Push(0, 100, flat(2, 4, encode.RGB{}))
	if c.Push(100, 100, flat(2, 5, encode.RGB{})) {
		t.Error("frames of different widths merged")
	}
}

func TestBuilderOrdering(t *testing.T) {
	b := NewBuilder(mustTimeline(t, 30, 10), 0)
	f := flat(1, 1, encode.RGB{})
	if err := b.Add(0, f); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(0, f); !errors.Is(err, errors.ErrCodeEncodingInvariant) {
		t.Errorf("repeated index error = %v", err)
	}
	if err := b.Add(4, f); !errors.Is(err, errors.ErrCodeEncodingInvariant) {
		t.Errorf("unsampled index error = %v", err)
	}
	if err := b.Add(3, f); err != nil {
		t.Errorf("Add(3): %v", err)
	}
	b.Finish()
	if err := b.Add(6, f); !errors.Is(err, errors.ErrCodeEncodingInvariant) {
		t.Errorf("add after finish error = %v", err)
	}
}

// Two flat 10fps frames at 10fps, threshold 0, four columns.
func TestScenarioTwoFlatFrames(t *testing.T) {
	b := NewBuilder(mustTimeline(t, 10, 10), 0)
	rows := 2
	for i, c := range []encode.RGB{{R: 255}, {B: 255}} {
		if err := b.Add(i, flat(rows, 4, c)); err != nil {
			t.Fatal(err)
		}
	}
	doc := b.Finish()
	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(doc.Blocks))
	}
	for i, blk := range doc.Blocks {
		if blk.DurationMs != 100 || blk.StartMs != int64(i*100) {
			t.Errorf("block %d = t%d d%d", i, blk.StartMs, blk.DurationMs)
		}
		if n := strings.Count(blk.Body, "<s "); n != rows {
			t.Errorf("block %d has %d spans, want %d", i, n, rows)
		}
		if n := strings.Count(blk.Body, "\n"); n != rows {
			t.Errorf("block %d has %d line breaks, want %d", i, n, rows)
		}
	}
	if len(doc.Pens) != 2 {
		t.Errorf("got %d pens, want 2", len(doc.Pens))
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// Five identical frames with a high threshold become one block.
func TestScenarioIdenticalFrames(t *testing.T) {
	tl := mustTimeline(t, 30, 10)
	b := NewBuilder(tl, 50)
	f := flat(3, 6, encode.RGB{R: 40, G: 40, B: 40})
	for i := 0; i < 5; i++ {
		if err := b.Add(i*tl.Step(), f); err != nil {
			t.Fatal(err)
		}
	}
	doc := b.Finish()
	if len(doc.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(doc.Blocks))
	}
	if want := 5 * tl.NominalMs(); doc.Blocks[0].DurationMs != want {
		t.Errorf("duration = %d, want %d", doc.Blocks[0].DurationMs, want)
	}
}

func TestDurationAdditivity(t *testing.T) {
	for _, fps := range []float64{10, 23.976, 29.97, 30, 59.94} {
		for _, threshold := range []int{0, 3, math.MaxInt} {
			tl := mustTimeline(t, fps, 10)
			b := NewBuilder(tl, threshold)
			total := 300
			sampled := 0
			for i := 0; i < total; i++ {
				if !tl.Sampled(i) {
					continue
				}
				sampled++
				if err := b.Add(i, flat(2, 3, encode.RGB{G: uint8(i % 7 * 30)})); err != nil {
					t.Fatal(err)
				}
			}
			doc := b.Finish()
			if err := doc.Validate(); err != nil {
				t.Errorf("fps=%v threshold=%d: %v", fps, threshold, err)
			}
			want := math.Round(1000 * float64(sampled*tl.Step()) / fps)
			diff := math.Abs(float64(doc.DurationMs()) - want)
			if diff > float64(sampled) {
				t.Errorf("fps=%v threshold=%d: total %d ms, want %.0f ± %d", fps, threshold, doc.DurationMs(), want, sampled)
			}
		}
	}
}

func TestSerialize(t *testing.T) {
	doc := Document{
		Pens: []Pen{{ID: 0, Color: "#FF0000"}, {ID: 1, Color: "#0000FF"}},
		Blocks: []Block{
			{StartMs: 0, DurationMs: 100, Body: `<s p="0">██</s>` + "\n"},
			{StartMs: 100, DurationMs: 200, Body: `<s p="1">&amp;</s>` + "\n"},
		},
	}
	want := `<?xml version="1.0" encoding="utf-8"?>
<timedtext format="3">
<head>
  <pen id="0" fc="#FF0000" ft="3" bo="0" ec="0" />
  <pen id="1" fc="#0000FF" ft="3" bo="0" ec="0" />
</head>
<body>
<p t="0" d="100"><s p="0">██</s>
</p>
<p t="100" d="200"><s p="1">&amp;</s>
</p>
</body></timedtext>`
	if got := string(Serialize(doc)); got != want {
		t.Errorf("Serialize =\n%s\nwant\n%s", got, want)
	}
}

func TestSerializePenOrder(t *testing.T) {
	doc := Document{Pens: []Pen{{ID: 1, Color: "#000000"}, {ID: 0, Color: "#FFFFFF"}}}
	out := string(Serialize(doc))
	if strings.Index(out, `id="0"`) > strings.Index(out, `id="1"`) {
		t.Error("pens not in ascending id order")
	}
}

func TestDocumentValidate(t *testing.T) {
	good := Document{
		Pens:   []Pen{{ID: 0, Color: "#FF0000"}},
		Blocks: []Block{{StartMs: 0, DurationMs: 100, Body: `<s p="0">a</s>` + "\n"}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	tests := []struct {
		name string
		mod  func(*Document)
	}{
		{"sparse ids", func(d *Document) { d.Pens[0].ID = 3 }},
		{"bad color", func(d *Document) { d.Pens[0].Color = "red" }},
		{"duplicate color", func(d *Document) { d.Pens = append(d.Pens, Pen{ID: 1, Color: "#FF0000"}) }},
		{"unknown pen", func(d *Document) { d.Blocks[0].Body = `<s p="7">a</s>` }},
		{"zero duration", func(d *Document) { d.Blocks[0].DurationMs = 0 }},
		{"overlap", func(d *Document) { d.Blocks = append(d.Blocks, Block{StartMs: 50, DurationMs: 10}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Document{
				Pens:   append([]Pen(nil), good.Pens...),
				Blocks: append([]Block(nil), good.Blocks...),
			}
			tt.mod(&d)
			if err := d.Validate(); !errors.Is(err, errors.ErrCodeInvalidDocument) {
				t.Errorf("Validate error = %v, want INVALID_DOCUMENT", err)
			}
		})
	}
}
