package memory

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/entrhq/pilot/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

// ImageTokenEstimate is the fixed charge for one image block. Base64 length
// says little about what a model bills for an image, so a flat figure is used.
const ImageTokenEstimate = 1000

// Estimator approximates how many tokens a piece of text consumes.
// Estimates are approximations; callers must not assume exactness.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator charges one token per four characters.
type CharEstimator struct{}

// Estimate returns the character count divided by four.
func (CharEstimator) Estimate(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

// DefaultEncoding is the BPE encoding used by NewTiktokenEstimator.
const DefaultEncoding = "cl100k_base"

// NewTiktokenEstimator loads the named encoding, DefaultEncoding when empty.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

// Estimate returns the number of BPE tokens in text.
func (e *TiktokenEstimator) Estimate(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// NewEstimator returns the estimator registered under name ("chars" or
// "tiktoken"). Unknown names and tiktoken load failures yield CharEstimator.
func NewEstimator(name string) Estimator {
	if name == "tiktoken" {
		est, err := NewTiktokenEstimator("")
		if err != nil {
			debugLog.Warnf("tiktoken unavailable, using character estimate: %v", err)
			return CharEstimator{}
		}
		return est
	}
	return CharEstimator{}
}

// estimateTurn sums the estimate of every block in a turn.
func estimateTurn(est Estimator, turn types.Turn) int {
	total := 0
	for _, block := range turn.Content {
		total += estimateBlock(est, block)
	}
	return total
}

func estimateBlock(est Estimator, block types.ContentBlock) int {
	switch block.Kind {
	case types.BlockKindText:
		return est.Estimate(block.Text)
	case types.BlockKindImage:
		return ImageTokenEstimate
	case types.BlockKindStructured:
		data, err := json.Marshal(block.JSON)
		if err != nil {
			return 0
		}
		return est.Estimate(string(data))
	default:
		return 0
	}
}
