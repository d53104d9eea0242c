package etm

import (
	"errors"

	"github.com/RolandMax/ETM/corpus"
)

var (
	ErrVocabLength  = errors.New("etm: vocabulary and embedding table differ in length")
	ErrVocabOrder   = errors.New("etm: vocabulary and embedding table differ in term order")
	ErrBadVocab     = errors.New("etm: vocabulary terms must be unique non-empty strings")
	ErrNotSparse    = corpus.ErrNotSparse
	ErrZeroDocument = errors.New("etm: documents with no observed counts")
	ErrNoOptimizer  = errors.New("etm: optimizer is required")
	ErrBadConfig    = errors.New("etm: invalid configuration")
	ErrShape        = errors.New("etm: dimension mismatch")
)
