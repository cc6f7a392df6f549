package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/basangdata/invoice-ingest/constants"
)

// Artifact is one inbound item from the transport layer.
type Artifact struct {
	ID   string // correlation id assigned by the caller
	Kind constants.ArtifactKind
	Data []byte // image or PDF bytes
	Text string // text artifacts
	MIME string // optional transport hint; sniffed when empty
}

// Unit is one model-callable piece of work. Created here, consumed exactly
// once by the orchestrator, never persisted.
type Unit struct {
	SequenceIndex int
	Kind          constants.UnitKind
	Payload       []byte
	MIMEType      string
	Text          string
	ArtifactID    string
}

// Config holds PDF rasterization settings.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 144 (2x upscale)
	MaxPages int    // 0 = no limit
}

// FanOut decomposes artifacts into ordered extraction units. Pure with
// respect to quota and the network; PDF handling shells out to pdftoppm.
type FanOut struct {
	cfg       Config
	runner    Runner
	log       *slog.Logger
	pageCount func(path string) (int, error)
}

func New(cfg Config, logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	return &FanOut{cfg: cfg, runner: execRunner{}, log: logger, pageCount: pdfPageCount}
}

// FanOut produces the ordered unit sequence for an artifact:
//   - image: exactly one unit, payload = raw bytes + detected mime type
//   - pdf:   one unit per page, in page order, payload = rasterized PNG
//   - text:  exactly one unit routed to the text-only prompt variant
//
// sequence_index values are stable 0..N-1 so callers can report
// "page 3 of 7 failed" precisely.
func (f *FanOut) FanOut(ctx context.Context, art Artifact) ([]Unit, error) {
	switch art.Kind {
	case constants.ArtifactImage:
		mime := art.MIME
		if mime == "" {
			mime = mimetype.Detect(art.Data).String()
		}
		return []Unit{{
			SequenceIndex: 0,
			Kind:          constants.UnitImage,
			Payload:       art.Data,
			MIMEType:      mime,
			ArtifactID:    art.ID,
		}}, nil

	case constants.ArtifactPDF:
		pages, err := f.rasterizePDF(ctx, art.Data)
		if err != nil {
			return nil, fmt.Errorf("fan out pdf: %w", err)
		}
		units := make([]Unit, len(pages))
		for i, png := range pages {
			units[i] = Unit{
				SequenceIndex: i,
				Kind:          constants.UnitPDFPage,
				Payload:       png,
				MIMEType:      "image/png",
				ArtifactID:    art.ID,
			}
		}
		f.log.Debug("fanout.pdf", "artifact_id", art.ID, "pages", len(units))
		return units, nil

	case constants.ArtifactText:
		return []Unit{{
			SequenceIndex: 0,
			Kind:          constants.UnitText,
			Text:          art.Text,
			ArtifactID:    art.ID,
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported artifact kind: %q", art.Kind)
	}
}
