package commands

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"

	"github.com/sumannaidur/extractor/internal/shared"
)

const progressTemplate = `{{ string . "prefix" }} {{ bar . }} {{ counters . }} | ETA {{ rtime . "%s" }}`

// progressBars shows one bar per language while a run is attached to a terminal.
type progressBars struct {
	out io.Writer
	bar *pb.ProgressBar
}

func newProgressBars(out io.Writer) *progressBars {
	return &progressBars{out: out}
}

func (p *progressBars) LanguageStarted(language string, movies int) {
	p.bar = pb.New(movies)
	p.bar.SetWriter(p.out)
	p.bar.SetTemplateString(progressTemplate)
	p.bar.Set("prefix", fmt.Sprintf("🎬 %-10s", shared.TruncateString(language, 10)))
	p.bar.Start()
}

func (p *progressBars) MovieFinished(string, shared.Movie) {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progressBars) LanguageFinished(string, shared.LanguageStats) {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
